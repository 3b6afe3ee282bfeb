package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Calls made by the recommendation client, by endpoint and outcome
	ClientRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_client_requests_total",
		Help: "Total number of requests issued to the cross-sale service",
	}, []string{"endpoint", "outcome"})

	ClientRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crosssale_client_request_duration_seconds",
		Help:    "Latency of requests issued to the cross-sale service",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Overlay session lifecycle events (opened, hidden, reshown, closed)
	OverlaySessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_overlay_session_events_total",
		Help: "Overlay session state transitions",
	}, []string{"event"})

	ReportedPairs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_reported_pairs_total",
		Help: "Recommendation pairs included in success reports",
	}, []string{"success"})

	// Server side
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crosssale_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
	}, []string{"method", "path"})

	RecommendationCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_recommendation_cache_total",
		Help: "Recommendation cache lookups by result",
	}, []string{"result"})

	Recalculations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crosssale_recalculations_total",
		Help: "Certainty recalculation runs by outcome",
	}, []string{"outcome"})

	HealthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crosssale_health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	DBConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crosssale_database_connections",
		Help: "PostgreSQL connection pool state",
	}, []string{"state"})

	once sync.Once
)

// Init registers every collector with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			ClientRequests,
			ClientRequestDuration,
			OverlaySessions,
			ReportedPairs,
			HTTPRequests,
			HTTPRequestDuration,
			RecommendationCache,
			Recalculations,
			HealthCheckStatus,
			DBConnections,
		)
	})
}
