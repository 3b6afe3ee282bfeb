package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/metrics"
	"github.com/temcen/crosssale/pkg/models"
)

// RecommendationCache keeps query results in Redis. Keys embed a generation
// counter; bumping it after a recalculation orphans every older entry, which
// then expires on its own TTL.
type RecommendationCache struct {
	client        *redis.Client
	ttl           time.Duration
	generationKey string
	logger        *logrus.Logger
}

func NewRecommendationCache(client *redis.Client, ttl time.Duration, generationKey string, logger *logrus.Logger) *RecommendationCache {
	return &RecommendationCache{
		client:        client,
		ttl:           ttl,
		generationKey: generationKey,
		logger:        logger,
	}
}

func (c *RecommendationCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the cached records for q. Any Redis failure counts as a miss.
func (c *RecommendationCache) Get(ctx context.Context, q models.RecommendationQuery) ([]models.RecommendationRecord, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cache generation")
		metrics.RecommendationCache.WithLabelValues("error").Inc()
		return nil, false
	}

	data, err := c.client.Get(ctx, CacheKey(gen, q)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("Failed to read recommendation cache")
		}
		metrics.RecommendationCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var records []models.RecommendationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.WithError(err).Warn("Discarding undecodable cache entry")
		metrics.RecommendationCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.RecommendationCache.WithLabelValues("hit").Inc()
	return records, true
}

func (c *RecommendationCache) Set(ctx context.Context, q models.RecommendationQuery, records []models.RecommendationRecord) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cache generation")
		return
	}

	data, err := json.Marshal(records)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, CacheKey(gen, q), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to write recommendation cache")
	}
}

// Invalidate bumps the generation and returns the new value.
func (c *RecommendationCache) Invalidate(ctx context.Context) (int64, error) {
	gen, err := c.client.Incr(ctx, c.generationKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return gen, nil
}

// CacheKey is independent of the order of the current items.
func CacheKey(generation int64, q models.RecommendationQuery) string {
	items := make([]string, len(q.CurrentItems))
	for i, id := range q.CurrentItems {
		items[i] = id.String()
	}
	sort.Strings(items)

	subject := "sex:" + string(q.Sex)
	if q.ClientID != uuid.Nil {
		subject = "client:" + q.ClientID.String()
	}

	return fmt.Sprintf("crosssale:rec:%d:%s:%d:%s:%s",
		generation, subject, q.Number, q.ProductType, strings.Join(items, ","))
}
