// Package crosssale is the client for the cross-sale recommendation service.
package crosssale

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/config"
	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/internal/validation"
	"github.com/temcen/crosssale/pkg/models"
)

const (
	PathRecalculate     = "sales/crosssale/recalculate"
	PathRecommendations = "sales/crosssale/recommendations"
	PathReportSuccess   = "sales/crosssale/report_success"
)

// Client retrieves recommendations and reports their outcome. It holds no
// mutable state and is safe for concurrent use.
type Client struct {
	transport Transport
	schemas   *validation.SchemaValidator
	validate  *validator.Validate
	logger    *logrus.Logger
}

func NewClient(transport Transport, logger *logrus.Logger) *Client {
	return &Client{
		transport: transport,
		schemas:   validation.MustNewSchemaValidator(),
		validate:  newValidator(),
		logger:    logger,
	}
}

// New builds a Client talking HTTP to the configured endpoint.
func New(cfg config.CrossSaleConfig, logger *logrus.Logger) *Client {
	return NewClient(NewHTTPTransport(cfg.BaseURL, cfg.Token, cfg.Timeout), logger)
}

// TriggerRecalculation asks the service to rebuild its recommendation table.
// The response body is not interpreted.
func (c *Client) TriggerRecalculation(ctx context.Context) bool {
	start := time.Now()
	_, err := c.transport.Get(ctx, PathRecalculate, "")
	err = asTransportError(err)
	c.observe(PathRecalculate, start, err)

	if err != nil {
		c.logger.WithError(err).Warn("Recalculation request failed")
		return false
	}

	c.logger.Debug("Recalculation requested")
	return true
}

// FetchByClientSex returns recommendations for an anonymous client of the
// given sex. Invalid input fails with ErrValidation before any request is made.
func (c *Client) FetchByClientSex(
	ctx context.Context,
	sex models.ClientSex,
	currentItems []uuid.UUID,
	count int,
	productType models.ProductType,
) ([]models.RecommendationRecord, error) {
	query := sexQuery{Sex: sex, Number: count, ProductType: productType, CurrentItems: currentItems}
	if err := c.check(query); err != nil {
		c.observe(PathRecommendations, time.Now(), err)
		return nil, err
	}

	return c.fetch(ctx, encodeQuery("sex", string(sex), count, productType, currentItems))
}

// FetchByClientID returns recommendations for a known client.
func (c *Client) FetchByClientID(
	ctx context.Context,
	clientID uuid.UUID,
	currentItems []uuid.UUID,
	count int,
	productType models.ProductType,
) ([]models.RecommendationRecord, error) {
	query := clientQuery{ClientID: clientID, Number: count, ProductType: productType, CurrentItems: currentItems}
	if err := c.check(query); err != nil {
		c.observe(PathRecommendations, time.Now(), err)
		return nil, err
	}

	return c.fetch(ctx, encodeQuery("client", clientID.String(), count, productType, currentItems))
}

// Records drops the error of a fetch for callers that only tell "some
// records" from "nothing":
//
//	recs := crosssale.Records(client.FetchByClientSex(ctx, sex, items, 5, models.ProductTypeAll))
func Records(records []models.RecommendationRecord, err error) []models.RecommendationRecord {
	if err != nil {
		return nil
	}
	return records
}

func (c *Client) fetch(ctx context.Context, rawQuery string) ([]models.RecommendationRecord, error) {
	start := time.Now()
	records, err := c.fetchRaw(ctx, rawQuery)
	c.observe(PathRecommendations, start, err)

	if err != nil {
		c.logger.WithError(err).WithField("query", rawQuery).Warn("Failed to fetch recommendations")
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"query":   rawQuery,
		"records": len(records),
	}).Debug("Recommendations fetched")

	return records, nil
}

func (c *Client) fetchRaw(ctx context.Context, rawQuery string) ([]models.RecommendationRecord, error) {
	body, err := c.transport.Get(ctx, PathRecommendations, rawQuery)
	if err != nil {
		return nil, asTransportError(err)
	}

	if err := c.schemas.ValidateRecommendations(body).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var records []models.RecommendationRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return records, nil
}

// ReportSuccess posts the accept/reject outcome of one overlay session. The
// entries are sent in the order given.
func (c *Client) ReportSuccess(ctx context.Context, entries []models.ReportEntry) error {
	if entries == nil {
		entries = []models.ReportEntry{}
	}

	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: marshal report: %w", ErrValidation, err)
	}

	start := time.Now()
	_, err = c.transport.Post(ctx, PathReportSuccess, "application/json", body)
	err = asTransportError(err)
	c.observe(PathReportSuccess, start, err)

	if err != nil {
		c.logger.WithError(err).WithField("entries", len(entries)).Error("Failed to send success report")
		return err
	}

	for _, e := range entries {
		metrics.ReportedPairs.WithLabelValues(fmt.Sprint(e.Success)).Inc()
	}
	c.logger.WithField("entries", len(entries)).Info("Success report sent")

	return nil
}

func (c *Client) observe(endpoint string, start time.Time, err error) {
	result := outcome(err)
	metrics.ClientRequests.WithLabelValues(endpoint, result).Inc()
	// Rejected input never reached the network
	if result != "validation_error" {
		metrics.ClientRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
