package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/crosssale/pkg/models"
)

type fakeRenderer struct {
	mu        sync.Mutex
	anchor    any
	displayed []models.ProductInfo
	removed   []EntryHandle
	shows     int
	hides     int
	closes    int
}

func (r *fakeRenderer) DisplayEntry(info models.ProductInfo) EntryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displayed = append(r.displayed, info)
	return len(r.displayed) - 1
}

func (r *fakeRenderer) RemoveEntry(h EntryHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, h)
}

func (r *fakeRenderer) Show()  { r.mu.Lock(); r.shows++; r.mu.Unlock() }
func (r *fakeRenderer) Hide()  { r.mu.Lock(); r.hides++; r.mu.Unlock() }
func (r *fakeRenderer) Close() { r.mu.Lock(); r.closes++; r.mu.Unlock() }

type fakeReporter struct {
	mu    sync.Mutex
	sent  [][]models.ReportEntry
	err   error
	ready chan struct{}
}

func (r *fakeReporter) ReportSuccess(ctx context.Context, entries []models.ReportEntry) error {
	if r.ready != nil {
		<-r.ready
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, entries)
	return r.err
}

func (r *fakeReporter) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	manager   *Manager
	reporter  *fakeReporter
	renderers []*fakeRenderer
	notified  []error
	accepted  []models.ProductInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	f := &fixture{reporter: &fakeReporter{}}
	factory := func(anchor any) Renderer {
		r := &fakeRenderer{anchor: anchor}
		f.renderers = append(f.renderers, r)
		return r
	}
	notifier := NotifierFunc(func(ctx context.Context, err error) {
		f.notified = append(f.notified, err)
	})
	f.manager = NewManager(f.reporter, factory, notifier, logger)
	return f
}

func (f *fixture) request(products ...models.ProductInfo) OpenRequest {
	return OpenRequest{
		Anchor:    "checkout-button",
		ClientSex: models.SexFemale,
		Products:  products,
		OnAccept: func(info models.ProductInfo) {
			f.accepted = append(f.accepted, info)
		},
	}
}

func product(selected, proposed uuid.UUID, name string, certainty float64) models.ProductInfo {
	return models.ProductInfo{
		Name:                 name,
		Certainty:            certainty,
		OriginalProductID:    selected,
		RecommendedProductID: proposed,
	}
}

func TestManager_OpenSkipsDuplicatePairs(t *testing.T) {
	f := newFixture(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(
		product(a, b, "Shampoo", 0.9),
		product(a, b, "Shampoo", 0.9),
		product(a, c, "Conditioner", 0.4),
	))
	require.NoError(t, err)

	assert.Equal(t, StateVisible, s.State())
	assert.Equal(t, 2, s.Displayed())
	require.Len(t, f.renderers, 1)
	assert.Len(t, f.renderers[0].displayed, 2)
	assert.Equal(t, "checkout-button", f.renderers[0].anchor)
	assert.Equal(t, 1, f.renderers[0].shows)
	assert.Len(t, s.ReportEntries(), 2)
}

func TestManager_OpenSkipsIncompleteProducts(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(
		product(a, b, "", 0.5),
		product(uuid.Nil, b, "No source", 0.5),
		product(a, uuid.Nil, "No target", 0.5),
		product(a, b, "Valid", 0.5),
	))
	require.NoError(t, err)

	assert.Equal(t, 1, s.Displayed())
	assert.Len(t, s.ReportEntries(), 1)
}

func TestManager_OpenRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	live, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)

	invalid := []func(r *OpenRequest){
		func(r *OpenRequest) { r.Anchor = nil },
		func(r *OpenRequest) { r.ClientSex = "Unknown" },
		func(r *OpenRequest) { r.Products = nil },
		func(r *OpenRequest) { r.OnAccept = nil },
	}

	for _, mutate := range invalid {
		req := f.request(product(a, b, "Soap", 0.5))
		mutate(&req)

		s, err := f.manager.Open(context.Background(), req)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrInvalidOpen)
	}

	// No side effects on the live session
	assert.Same(t, live, f.manager.Current())
	assert.Equal(t, StateVisible, live.State())
	assert.Len(t, f.renderers, 1)
	assert.Zero(t, f.reporter.calls())
}

func TestManager_OpenEmptyProductList(t *testing.T) {
	f := newFixture(t)

	req := f.request()
	req.Products = []models.ProductInfo{}

	s, err := f.manager.Open(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateVisible, s.State())
	assert.Zero(t, s.Displayed())

	s.Close(context.Background())
	require.Equal(t, 1, f.reporter.calls())
	assert.Empty(t, f.reporter.sent[0])
}

func TestManager_OpenClosesPriorSession(t *testing.T) {
	f := newFixture(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	first, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)
	require.NoError(t, first.Hide())

	second, err := f.manager.Open(context.Background(), f.request(product(a, c, "Towel", 0.7)))
	require.NoError(t, err)

	assert.Equal(t, StateClosed, first.State())
	assert.Equal(t, 1, f.renderers[0].closes)
	require.Equal(t, 1, f.reporter.calls())
	assert.Equal(t, b, f.reporter.sent[0][0].ProposedProduct)

	assert.Same(t, second, f.manager.Current())
	assert.Equal(t, StateVisible, second.State())
}

func TestSession_AcceptThenClose(t *testing.T) {
	f := newFixture(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	shampoo := product(a, b, "Shampoo", 0.9)

	s, err := f.manager.Open(context.Background(), f.request(shampoo, product(a, c, "Conditioner", 0.4)))
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), shampoo))

	assert.Equal(t, []models.ProductInfo{shampoo}, f.accepted)
	assert.Equal(t, 1, s.Displayed())
	assert.Len(t, f.renderers[0].removed, 1)
	assert.Equal(t, StateVisible, s.State())

	s.Close(context.Background())

	require.Equal(t, 1, f.reporter.calls())
	var successes []models.ReportEntry
	for _, e := range f.reporter.sent[0] {
		assert.Equal(t, models.SexFemale, e.Sex)
		if e.Success {
			successes = append(successes, e)
		}
	}
	require.Len(t, successes, 1)
	assert.Equal(t, a, successes[0].SelectedProduct)
	assert.Equal(t, b, successes[0].ProposedProduct)
}

func TestSession_AcceptingLastEntryCloses(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	soap := product(a, b, "Soap", 0.5)

	s, err := f.manager.Open(context.Background(), f.request(soap))
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), soap))

	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, f.manager.Current())
	require.Equal(t, 1, f.reporter.calls())
	assert.True(t, f.reporter.sent[0][0].Success)

	assert.ErrorIs(t, s.Accept(context.Background(), soap), ErrSessionClosed)
}

func TestSession_AcceptUnknownEntry(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Accept(context.Background(), product(b, a, "Other", 0.5)), ErrUnknownEntry)
	assert.Empty(t, f.accepted)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)

	s.Close(context.Background())
	s.Close(context.Background())
	s.UserClose(context.Background())
	f.manager.Close(context.Background())

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, f.reporter.calls())
	assert.Equal(t, 1, f.renderers[0].closes)
	assert.Nil(t, s.ReportEntries())
}

func TestSession_ConcurrentCloseSendsOnce(t *testing.T) {
	f := newFixture(t)
	f.reporter.ready = make(chan struct{})
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close(context.Background())
		}()
	}
	close(f.reporter.ready)
	wg.Wait()

	assert.Equal(t, 1, f.reporter.calls())
}

func TestSession_HideAndReshowKeepReport(t *testing.T) {
	f := newFixture(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	soap := product(a, b, "Soap", 0.5)

	s, err := f.manager.Open(context.Background(), f.request(soap, product(a, c, "Towel", 0.2)))
	require.NoError(t, err)
	require.NoError(t, s.Accept(context.Background(), soap))
	before := s.ReportEntries()

	require.NoError(t, s.Hide())
	assert.Equal(t, StateHidden, s.State())
	require.NoError(t, s.Hide())
	assert.Equal(t, 1, f.renderers[0].hides)

	s.Reshow()
	assert.Equal(t, StateVisible, s.State())
	s.Reshow()
	assert.Equal(t, 2, f.renderers[0].shows)

	f.manager.Hide()
	f.manager.Reshow()

	assert.Zero(t, f.reporter.calls())
	assert.Equal(t, before, s.ReportEntries())
}

func TestSession_ClosedTransitions(t *testing.T) {
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)
	s.Close(context.Background())

	assert.ErrorIs(t, s.Hide(), ErrSessionClosed)
	s.Reshow()
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, f.renderers[0].shows)
}

func TestSession_ReportFailureStillCloses(t *testing.T) {
	f := newFixture(t)
	f.reporter.err = errors.New("service unavailable")
	a, b := uuid.New(), uuid.New()

	s, err := f.manager.Open(context.Background(), f.request(product(a, b, "Soap", 0.5)))
	require.NoError(t, err)

	s.Close(context.Background())

	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, f.manager.Current())
	require.Len(t, f.notified, 1)
	assert.EqualError(t, f.notified[0], "service unavailable")

	s.Close(context.Background())
	assert.Equal(t, 1, f.reporter.calls())
	assert.Len(t, f.notified, 1)
}

func TestEmphasis(t *testing.T) {
	assert.Equal(t, uint8(255), Emphasis(1, DefaultAlphaCoefficient))
	assert.Equal(t, uint8(0), Emphasis(0, DefaultAlphaCoefficient))
	assert.Equal(t, uint8(127), Emphasis(0.5, DefaultAlphaCoefficient))
	assert.Equal(t, uint8(255), Emphasis(0, 0))
	assert.Equal(t, uint8(155), Emphasis(0, 100))
	assert.Equal(t, uint8(255), Emphasis(1.7, 255))
	assert.Equal(t, uint8(0), Emphasis(-1, 300))
	assert.Equal(t, "hidden", StateHidden.String())
}

// reentrantRenderer reads the session back from inside every renderer call,
// the way a widget toolkit does when it raises events synchronously.
type reentrantRenderer struct {
	fakeRenderer
	session *Session
	seen    []State
}

func (r *reentrantRenderer) observe() {
	if r.session == nil {
		return
	}
	state := r.session.State()
	r.session.Displayed()
	r.mu.Lock()
	r.seen = append(r.seen, state)
	r.mu.Unlock()
}

func (r *reentrantRenderer) RemoveEntry(h EntryHandle) { r.fakeRenderer.RemoveEntry(h); r.observe() }
func (r *reentrantRenderer) Show()                     { r.fakeRenderer.Show(); r.observe() }
func (r *reentrantRenderer) Hide()                     { r.fakeRenderer.Hide(); r.observe() }

func (r *reentrantRenderer) Close() {
	r.fakeRenderer.Close()
	r.observe()
	if r.session != nil {
		r.session.UserClose(context.Background())
	}
}

func TestSession_RendererMayCallBackIntoSession(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	renderer := &reentrantRenderer{}
	reporter := &fakeReporter{}
	manager := NewManager(reporter, func(any) Renderer { return renderer },
		NotifierFunc(func(context.Context, error) {}), logger)

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	session, err := manager.Open(context.Background(), OpenRequest{
		Anchor:    "till",
		ClientSex: models.SexMale,
		Products:  []models.ProductInfo{product(a, b, "Soap", 0.8), product(a, c, "Sponge", 0.3)},
		OnAccept:  func(models.ProductInfo) {},
	})
	require.NoError(t, err)
	renderer.session = session

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, session.Hide())
		session.Reshow()
		assert.NoError(t, session.Accept(context.Background(), product(a, b, "Soap", 0.8)))
		session.Close(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session blocked while the renderer called back into it")
	}

	assert.Equal(t, []State{StateHidden, StateVisible, StateVisible, StateClosed}, renderer.seen)
	assert.Equal(t, StateClosed, session.State())
	assert.Equal(t, 1, reporter.calls())
	assert.Nil(t, manager.Current())
}
