package overlay

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/internal/report"
	"github.com/temcen/crosssale/pkg/models"
)

// OpenRequest describes a new display of recommendations.
type OpenRequest struct {
	Anchor    any
	ClientSex models.ClientSex
	Products  []models.ProductInfo
	OnAccept  func(models.ProductInfo)
}

func (r OpenRequest) valid() bool {
	return r.Anchor != nil && r.ClientSex.Valid() && r.Products != nil && r.OnAccept != nil
}

// Manager owns the single live overlay session.
type Manager struct {
	openMu sync.Mutex // serializes Open
	mu     sync.Mutex // guards current

	current   *Session
	reporter  report.Reporter
	renderers RendererFactory
	notifier  Notifier
	logger    *logrus.Logger
}

func NewManager(reporter report.Reporter, renderers RendererFactory, notifier Notifier, logger *logrus.Logger) *Manager {
	return &Manager{
		reporter:  reporter,
		renderers: renderers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Open validates req, closes any live session (sending its report) and shows
// the new one. Products without a name or with a nil identifier are skipped,
// as are repeats of a pair already shown. An invalid request returns
// ErrInvalidOpen and leaves the current session untouched.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if !req.valid() {
		return nil, ErrInvalidOpen
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()

	if prior := m.Current(); prior != nil {
		prior.Close(ctx)
	}

	renderer := m.renderers(req.Anchor)
	s := &Session{
		id:         uuid.New(),
		state:      StateVisible,
		sex:        req.ClientSex,
		aggregator: report.New(len(req.Products), m.reporter),
		renderer:   renderer,
		notifier:   m.notifier,
		onAccept:   req.OnAccept,
		entries:    make(map[models.PairKey]EntryHandle, len(req.Products)),
		logger:     m.logger,
		onClosed:   m.release,
	}

	skipped := 0
	for _, info := range req.Products {
		if !info.Displayable() {
			skipped++
			continue
		}
		pair := info.Pair()
		if !s.aggregator.RecordDisplayed(pair) {
			skipped++
			continue
		}
		s.entries[pair.Key()] = renderer.DisplayEntry(info)
	}

	renderer.Show()

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	metrics.OverlaySessions.WithLabelValues("opened").Inc()
	m.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"client_sex": s.sex,
		"displayed":  len(s.entries),
		"skipped":    skipped,
	}).Info("Overlay opened")

	return s, nil
}

// Close closes the live session, if any.
func (m *Manager) Close(ctx context.Context) {
	if s := m.Current(); s != nil {
		s.Close(ctx)
	}
}

// Hide hides the live session, if any.
func (m *Manager) Hide() {
	if s := m.Current(); s != nil {
		_ = s.Hide()
	}
}

// Reshow brings the live session back, if any.
func (m *Manager) Reshow() {
	if s := m.Current(); s != nil {
		s.Reshow()
	}
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}
