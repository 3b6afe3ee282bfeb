// Package overlay drives the lifecycle of one on-screen display of
// recommendations and its success report.
package overlay

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/internal/report"
	"github.com/temcen/crosssale/pkg/models"
)

var (
	ErrInvalidOpen   = errors.New("overlay: invalid open request")
	ErrSessionClosed = errors.New("overlay: session is closed")
	ErrUnknownEntry  = errors.New("overlay: recommendation is not displayed")
)

type State int

const (
	StateClosed State = iota
	StateVisible
	StateHidden
)

func (s State) String() string {
	switch s {
	case StateVisible:
		return "visible"
	case StateHidden:
		return "hidden"
	default:
		return "closed"
	}
}

// Session is one display of recommendations. It owns the report aggregator
// for that display and sends the report exactly once, when it closes.
type Session struct {
	mu sync.Mutex

	id         uuid.UUID
	state      State
	sex        models.ClientSex
	aggregator *report.Aggregator
	renderer   Renderer
	notifier   Notifier
	onAccept   func(models.ProductInfo)
	entries    map[models.PairKey]EntryHandle
	logger     *logrus.Logger

	// called once, after the report attempt
	onClosed func(*Session)
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ClientSex() models.ClientSex {
	return s.sex
}

// Displayed returns how many recommendations are still on screen.
func (s *Session) Displayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ReportEntries is the report as it would be sent right now. It is empty once
// the session has closed.
func (s *Session) ReportEntries() []models.ReportEntry {
	s.mu.Lock()
	agg := s.aggregator
	s.mu.Unlock()

	if agg == nil {
		return nil
	}
	return agg.Entries(s.sex)
}

// Accept records that the user added info's product to the check, hands it to
// the accept callback and takes the entry off screen. Accepting the last
// entry closes the session.
func (s *Session) Accept(ctx context.Context, info models.ProductInfo) error {
	pair := info.Pair()
	key := pair.Key()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	handle, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownEntry
	}
	s.aggregator.RecordAccepted(pair)
	delete(s.entries, key)
	onAccept := s.onAccept
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"session_id":       s.id,
		"selected_product": pair.SelectedProduct,
		"proposed_product": pair.ProposedProduct,
	}).Info("Recommendation accepted")

	onAccept(info)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	empty := len(s.entries) == 0
	s.mu.Unlock()

	s.renderer.RemoveEntry(handle)

	if empty {
		s.Close(ctx)
	}
	return nil
}

// Hide takes the overlay off screen but keeps its content; nothing is reported.
func (s *Session) Hide() error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateHidden:
		s.mu.Unlock()
		return nil
	}
	s.state = StateHidden
	s.mu.Unlock()

	s.renderer.Hide()
	metrics.OverlaySessions.WithLabelValues("hidden").Inc()
	s.logger.WithField("session_id", s.id).Debug("Overlay hidden")
	return nil
}

// Reshow brings a hidden overlay back. It does nothing for a visible or closed
// session.
func (s *Session) Reshow() {
	s.mu.Lock()
	if s.state != StateHidden {
		s.mu.Unlock()
		return
	}
	s.state = StateVisible
	s.mu.Unlock()

	s.renderer.Show()
	metrics.OverlaySessions.WithLabelValues("reshown").Inc()
	s.logger.WithField("session_id", s.id).Debug("Overlay reshown")
}

// Close tears the overlay down and sends the report. Only the first call does
// anything. A failed send is logged and surfaced through the notifier; the
// session is closed either way.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	agg := s.aggregator
	s.entries = nil
	s.mu.Unlock()

	s.renderer.Close()

	metrics.OverlaySessions.WithLabelValues("closed").Inc()

	logger := s.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"pairs":      agg.Len(),
	})

	if err := agg.Send(ctx, s.sex); err != nil {
		logger.WithError(err).Error("Failed to report recommendation outcome")
		s.notifier.Notify(ctx, err)
	} else {
		logger.Info("Overlay closed, report sent")
	}

	s.mu.Lock()
	s.aggregator = nil
	onClosed := s.onClosed
	s.mu.Unlock()

	if onClosed != nil {
		onClosed(s)
	}
}

// UserClose handles the overlay's own close control.
func (s *Session) UserClose(ctx context.Context) {
	s.Close(ctx)
}
