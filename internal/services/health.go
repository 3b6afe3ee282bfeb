package services

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/crosssale/internal/metrics"
)

// HealthCheck probes one dependency. A failing critical check makes the
// service unhealthy; a failing non-critical one only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type HealthService struct {
	checks  []HealthCheck
	timeout time.Duration
	logger  *logrus.Logger
}

type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Services    map[string]string `json:"services"`
	Critical    []string          `json:"critical_failures,omitempty"`
	NonCritical []string          `json:"non_critical_failures,omitempty"`
}

func NewHealthService(logger *logrus.Logger, checks ...HealthCheck) *HealthService {
	return &HealthService{
		checks:  checks,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// PostgresCheck is critical: nothing can be served without the database.
func PostgresCheck(pool *pgxpool.Pool) HealthCheck {
	return HealthCheck{Name: "postgresql", Critical: true, Check: pool.Ping}
}

// RedisCheck is non-critical: recommendations fall back to PostgreSQL.
func RedisCheck(client *redis.Client) HealthCheck {
	return HealthCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Services:  make(map[string]string, len(s.checks)),
	}

	allCriticalHealthy := true
	for _, hc := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := hc.Check(checkCtx)
		cancel()

		if err == nil {
			status.Services[hc.Name] = "healthy"
			s.updateHealthMetrics(hc.Name, true)
			continue
		}

		status.Services[hc.Name] = "unhealthy"
		s.updateHealthMetrics(hc.Name, false)
		if hc.Critical {
			allCriticalHealthy = false
			status.Critical = append(status.Critical, hc.Name)
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", hc.Name)
		} else {
			status.NonCritical = append(status.NonCritical, hc.Name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", hc.Name)
		}
	}
	sort.Strings(status.Critical)
	sort.Strings(status.NonCritical)

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}

	return status
}

// CollectPoolMetrics publishes pool statistics until ctx is done.
func CollectPoolMetrics(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stat()
			metrics.DBConnections.WithLabelValues("acquired").Set(float64(stats.AcquiredConns()))
			metrics.DBConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
			metrics.DBConnections.WithLabelValues("total").Set(float64(stats.TotalConns()))
			metrics.DBConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
		}
	}
}

func (s *HealthService) updateHealthMetrics(name string, healthy bool) {
	if healthy {
		metrics.HealthCheckStatus.WithLabelValues(name).Set(1)
	} else {
		metrics.HealthCheckStatus.WithLabelValues(name).Set(0)
	}
}
