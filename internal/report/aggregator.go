// Package report accumulates the accept/reject outcome of displayed
// recommendations and sends it to the cross-sale service.
package report

import (
	"context"
	"errors"
	"sync"

	"github.com/temcen/crosssale/pkg/models"
)

// ErrAlreadySent is returned by Send after the single allowed attempt.
var ErrAlreadySent = errors.New("report: already sent")

// Reporter delivers a serialized report. *crosssale.Client implements it.
type Reporter interface {
	ReportSuccess(ctx context.Context, entries []models.ReportEntry) error
}

// Aggregator maps recommendation pairs to whether they were added to the
// check. Keys are PairKey projections, so two pairs differing only in
// certainty collapse into one entry. Entries keep insertion order.
type Aggregator struct {
	mu       sync.Mutex
	reporter Reporter
	order    []models.PairKey
	accepted map[models.PairKey]bool
	sent     bool
}

func New(expectedSize int, reporter Reporter) *Aggregator {
	if expectedSize < 0 {
		expectedSize = 0
	}
	return &Aggregator{
		reporter: reporter,
		order:    make([]models.PairKey, 0, expectedSize),
		accepted: make(map[models.PairKey]bool, expectedSize),
	}
}

// RecordDisplayed adds pair as not accepted unless it is already present.
// It reports whether the pair was new.
func (a *Aggregator) RecordDisplayed(pair models.ProductPair) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := pair.Key()
	if _, ok := a.accepted[key]; ok {
		return false
	}
	a.order = append(a.order, key)
	a.accepted[key] = false
	return true
}

// RecordAccepted marks pair as added to the check.
func (a *Aggregator) RecordAccepted(pair models.ProductPair) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := pair.Key()
	if _, ok := a.accepted[key]; !ok {
		a.order = append(a.order, key)
	}
	a.accepted[key] = true
}

// Accepted returns the flag recorded for pair and whether pair is known.
func (a *Aggregator) Accepted(pair models.ProductPair) (accepted, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	accepted, ok = a.accepted[pair.Key()]
	return accepted, ok
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Entries renders the mapping as report entries in insertion order.
func (a *Aggregator) Entries(sex models.ClientSex) []models.ReportEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries(sex)
}

func (a *Aggregator) entries(sex models.ClientSex) []models.ReportEntry {
	entries := make([]models.ReportEntry, 0, len(a.order))
	for _, key := range a.order {
		entries = append(entries, models.ReportEntry{
			Sex:             sex,
			SelectedProduct: key.SelectedProduct,
			ProposedProduct: key.ProposedProduct,
			Success:         a.accepted[key],
		})
	}
	return entries
}

// Send posts the report once. The attempt counts even when it fails; later
// calls return ErrAlreadySent without touching the network.
func (a *Aggregator) Send(ctx context.Context, sex models.ClientSex) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sent {
		return ErrAlreadySent
	}
	a.sent = true

	return a.reporter.ReportSuccess(ctx, a.entries(sex))
}
