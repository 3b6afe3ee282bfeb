package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/crosssale/internal/overlay"
	"github.com/temcen/crosssale/pkg/models"
)

type recordingReporter struct {
	mu      sync.Mutex
	reports [][]models.ReportEntry
}

func (r *recordingReporter) ReportSuccess(ctx context.Context, entries []models.ReportEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, entries)
	return nil
}

func openTestOverlay(t *testing.T, out *bytes.Buffer, products ...models.ProductInfo) (*overlay.Manager, *ConsoleRenderer, *recordingReporter, *[]string) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	reporter := &recordingReporter{}
	renderer := NewConsoleRenderer(out, "Recommended", 255)
	manager := overlay.NewManager(reporter, func(any) overlay.Renderer { return renderer },
		overlay.NotifierFunc(func(context.Context, error) { t.Error("unexpected report failure") }), logger)

	var accepted []string
	_, err := manager.Open(context.Background(), overlay.OpenRequest{
		Anchor:    out,
		ClientSex: models.SexFemale,
		Products:  products,
		OnAccept:  func(info models.ProductInfo) { accepted = append(accepted, info.Name) },
	})
	require.NoError(t, err)

	return manager, renderer, reporter, &accepted
}

func testProducts() (models.ProductInfo, models.ProductInfo) {
	selected := uuid.New()
	return models.ProductInfo{Name: "Gift wrap", Certainty: 0.9, OriginalProductID: selected, RecommendedProductID: uuid.New()},
		models.ProductInfo{Name: "Warranty", Certainty: 0.4, OriginalProductID: selected, RecommendedProductID: uuid.New()}
}

func TestShowLoop_AcceptThenClose(t *testing.T) {
	var out bytes.Buffer
	wrap, warranty := testProducts()
	manager, renderer, reporter, accepted := openTestOverlay(t, &out, wrap, warranty)

	in := strings.NewReader("accept 2\naccept 7\nfrobnicate\nhide\nreshow\nq\nnever read\n")
	require.NoError(t, runShowLoop(context.Background(), in, &out, manager, renderer))

	assert.Equal(t, []string{"Warranty"}, *accepted)
	assert.Contains(t, out.String(), "no entry 7")
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)
	assert.Nil(t, manager.Current())

	require.Len(t, reporter.reports, 1)
	assert.Equal(t, []models.ReportEntry{
		{Sex: models.SexFemale, SelectedProduct: wrap.OriginalProductID, ProposedProduct: wrap.RecommendedProductID, Success: false},
		{Sex: models.SexFemale, SelectedProduct: warranty.OriginalProductID, ProposedProduct: warranty.RecommendedProductID, Success: true},
	}, reporter.reports[0])
}

func TestShowLoop_AcceptingEverythingCloses(t *testing.T) {
	var out bytes.Buffer
	wrap, warranty := testProducts()
	manager, renderer, reporter, accepted := openTestOverlay(t, &out, wrap, warranty)

	in := strings.NewReader("accept 1\naccept 1\nhide\n")
	require.NoError(t, runShowLoop(context.Background(), in, &out, manager, renderer))

	assert.Equal(t, []string{"Gift wrap", "Warranty"}, *accepted)
	require.Len(t, reporter.reports, 1)
	for _, entry := range reporter.reports[0] {
		assert.True(t, entry.Success)
	}
	assert.NotContains(t, out.String(), "recommendations hidden")
}

func TestShowLoop_EndOfInputCloses(t *testing.T) {
	var out bytes.Buffer
	wrap, _ := testProducts()
	manager, renderer, reporter, _ := openTestOverlay(t, &out, wrap)

	require.NoError(t, runShowLoop(context.Background(), strings.NewReader(""), &out, manager, renderer))

	assert.Nil(t, manager.Current())
	require.Len(t, reporter.reports, 1)
	assert.False(t, reporter.reports[0][0].Success)
}
