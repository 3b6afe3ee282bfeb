package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/pkg/models"
)

// DatabaseQuerier is satisfied by *pgxpool.Pool and by pgxmock pools.
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type ResultCache interface {
	Get(ctx context.Context, q models.RecommendationQuery) ([]models.RecommendationRecord, bool)
	Set(ctx context.Context, q models.RecommendationQuery, records []models.RecommendationRecord)
	Invalidate(ctx context.Context) (int64, error)
}

type ReportPublisher interface {
	PublishReports(ctx context.Context, events []models.ReportEvent) error
}

type CrossSaleServiceInterface interface {
	Recommendations(ctx context.Context, q models.RecommendationQuery) ([]models.RecommendationRecord, error)
	RecordReport(ctx context.Context, entries []models.ReportEntry) error
	Recalculate(ctx context.Context) (*models.RecalculationResult, error)
}

const (
	clientSexQuery = `SELECT sex FROM crosssale_clients WHERE id = $1`

	// Best pair per proposed product; nothing already in the check is proposed.
	recommendationsQuery = `
		SELECT selected_product, proposed_product, certainty FROM (
			SELECT DISTINCT ON (r.proposed_product)
				r.selected_product, r.proposed_product, r.certainty
			FROM crosssale_recommendations r
			JOIN crosssale_products p ON p.id = r.proposed_product
			WHERE ($1 = '' OR r.sex = $1)
				AND ($2 = 'all' OR p.product_type = $2)
				AND (cardinality($3::uuid[]) = 0 OR r.selected_product = ANY($3::uuid[]))
				AND NOT (r.proposed_product = ANY($3::uuid[]))
			ORDER BY r.proposed_product, r.certainty DESC
		) best
		ORDER BY certainty DESC, proposed_product
		LIMIT $4`

	insertReportQuery = `
		INSERT INTO crosssale_reports (sex, selected_product, proposed_product, success, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	reportTotalsQuery = `
		SELECT sex, selected_product, proposed_product,
			count(*) AS displays,
			count(*) FILTER (WHERE success) AS acceptances
		FROM crosssale_reports
		GROUP BY sex, selected_product, proposed_product
		HAVING count(*) >= $1`

	upsertRecommendationQuery = `
		INSERT INTO crosssale_recommendations
			(sex, selected_product, proposed_product, certainty, displays, acceptances, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sex, selected_product, proposed_product) DO UPDATE SET
			certainty = EXCLUDED.certainty,
			displays = EXCLUDED.displays,
			acceptances = EXCLUDED.acceptances,
			updated_at = EXCLUDED.updated_at`
)

// CrossSaleService backs the three cross-sale endpoints.
type CrossSaleService struct {
	db        DatabaseQuerier
	cache     ResultCache
	publisher ReportPublisher
	cfg       config.RecalculationConfig
	logger    *logrus.Logger

	// Recalculate runs one at a time.
	recalcMu sync.Mutex

	now   func() time.Time
	newID func() uuid.UUID
}

// NewCrossSaleService builds the service. cache and publisher may be nil.
func NewCrossSaleService(db DatabaseQuerier, cache ResultCache, publisher ReportPublisher, cfg config.RecalculationConfig, logger *logrus.Logger) *CrossSaleService {
	return &CrossSaleService{
		db:        db,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.New,
	}
}

func (s *CrossSaleService) Recommendations(ctx context.Context, q models.RecommendationQuery) ([]models.RecommendationRecord, error) {
	if s.cache != nil {
		if records, ok := s.cache.Get(ctx, q); ok {
			return records, nil
		}
	}

	sex := string(q.Sex)
	if q.ClientID != uuid.Nil {
		resolved, err := s.clientSex(ctx, q.ClientID)
		if err != nil {
			return nil, err
		}
		sex = resolved
	}

	items := make([]string, len(q.CurrentItems))
	for i, id := range q.CurrentItems {
		items[i] = id.String()
	}

	rows, err := s.db.Query(ctx, recommendationsQuery, sex, string(q.ProductType), items, q.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	records := make([]models.RecommendationRecord, 0, q.Number)
	for rows.Next() {
		var rec models.RecommendationRecord
		if err := rows.Scan(&rec.SelectedProduct, &rec.ProposedProduct, &rec.Certainty); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recommendations: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, q, records)
	}

	return records, nil
}

// clientSex returns "" for an unknown client, which disables the sex filter.
func (s *CrossSaleService) clientSex(ctx context.Context, clientID uuid.UUID) (string, error) {
	var sex string
	err := s.db.QueryRow(ctx, clientSexQuery, clientID).Scan(&sex)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.WithField("client_id", clientID).Debug("Unknown client, recommending across sexes")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up client: %w", err)
	}
	return sex, nil
}

// RecordReport stores every entry in one transaction and then publishes them.
// A publish failure is logged; the report is already stored.
func (s *CrossSaleService) RecordReport(ctx context.Context, entries []models.ReportEntry) error {
	if len(entries) == 0 {
		return nil
	}

	receivedAt := s.now().UTC()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx, insertReportQuery,
			string(e.Sex), e.SelectedProduct, e.ProposedProduct, e.Success, receivedAt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to insert report entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	accepted := 0
	for _, e := range entries {
		if e.Success {
			accepted++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"entries":  len(entries),
		"accepted": accepted,
	}).Info("Report stored")

	if s.publisher == nil {
		return nil
	}

	events := make([]models.ReportEvent, len(entries))
	for i, e := range entries {
		events[i] = models.ReportEvent{
			EventID:         s.newID(),
			Sex:             e.Sex,
			SelectedProduct: e.SelectedProduct,
			ProposedProduct: e.ProposedProduct,
			Success:         e.Success,
			ReceivedAt:      receivedAt,
		}
	}
	if err := s.publisher.PublishReports(ctx, events); err != nil {
		s.logger.WithError(err).Warn("Report stored but not published")
	}

	return nil
}

type pairTotals struct {
	sex         string
	selected    uuid.UUID
	proposed    uuid.UUID
	displays    int
	acceptances int
}

// Recalculate recomputes certainty for every pair shown at least MinDisplays
// times and invalidates cached results.
func (s *CrossSaleService) Recalculate(ctx context.Context) (*models.RecalculationResult, error) {
	s.recalcMu.Lock()
	defer s.recalcMu.Unlock()

	start := s.now()
	result, err := s.recalculate(ctx)
	if err != nil {
		metrics.Recalculations.WithLabelValues("error").Inc()
		s.logger.WithError(err).Error("Recalculation failed")
		return nil, err
	}
	result.Duration = s.now().Sub(start)
	metrics.Recalculations.WithLabelValues("ok").Inc()

	s.logger.WithFields(logrus.Fields{
		"pairs_updated": result.PairsUpdated,
		"generation":    result.Generation,
		"duration":      result.Duration,
	}).Info("Recalculation completed")

	return result, nil
}

func (s *CrossSaleService) recalculate(ctx context.Context) (*models.RecalculationResult, error) {
	rows, err := s.db.Query(ctx, reportTotalsQuery, s.cfg.MinDisplays)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate reports: %w", err)
	}

	var totals []pairTotals
	for rows.Next() {
		var t pairTotals
		if err := rows.Scan(&t.sex, &t.selected, &t.proposed, &t.displays, &t.acceptances); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan report totals: %w", err)
		}
		totals = append(totals, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report totals: %w", err)
	}

	result := &models.RecalculationResult{}

	if len(totals) > 0 {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		updatedAt := s.now().UTC()
		for _, t := range totals {
			certainty := WilsonLowerBound(t.acceptances, t.displays, s.cfg.Confidence)
			if _, err := tx.Exec(ctx, upsertRecommendationQuery,
				t.sex, t.selected, t.proposed, certainty, t.displays, t.acceptances, updatedAt); err != nil {
				_ = tx.Rollback(ctx)
				return nil, fmt.Errorf("failed to update pair certainty: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit recalculation: %w", err)
		}
		result.PairsUpdated = len(totals)
	}

	if s.cache != nil {
		gen, err := s.cache.Invalidate(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Cached recommendations may be stale")
		} else {
			result.Generation = gen
		}
	}

	return result, nil
}

// RecalculateEvery returns a report event handler that triggers Recalculate
// after every threshold events. The counter is only reset by a successful
// run, so a retried event retries the recalculation. A threshold below 1
// yields a no-op handler.
func (s *CrossSaleService) RecalculateEvery(ctx context.Context, threshold int) func(models.ReportEvent) error {
	var mu sync.Mutex
	seen := 0

	return func(models.ReportEvent) error {
		if threshold < 1 {
			return nil
		}

		mu.Lock()
		seen++
		due := seen >= threshold
		mu.Unlock()

		if !due {
			return nil
		}
		if _, err := s.Recalculate(ctx); err != nil {
			return err
		}

		mu.Lock()
		seen = 0
		mu.Unlock()
		return nil
	}
}
