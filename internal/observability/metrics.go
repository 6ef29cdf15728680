package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guestbook_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ModerationMessages counts processed moderation messages by transition class and outcome.
	ModerationMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_moderation_messages_total",
		Help: "Total number of moderation messages processed",
	}, []string{"class", "outcome"})

	// ModerationTransitions counts committed state machine transitions.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_moderation_transitions_total",
		Help: "Total number of committed moderation transitions",
	}, []string{"transition"})

	// ModerationLatency records end-to-end handling time of one message.
	ModerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guestbook_moderation_latency_seconds",
		Help:    "Moderation message processing latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	// SpamScores counts spam checker verdicts by score.
	SpamScores = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_spam_scores_total",
		Help: "Total number of spam scores returned by the checker",
	}, []string{"score"})

	// SpamCheckErrors counts scoring calls that could not produce a verdict.
	SpamCheckErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_spam_check_errors_total",
		Help: "Total number of failed spam checks by reason",
	}, []string{"reason"})

	// InertDeliveries counts messages dropped because no transition applied.
	InertDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guestbook_moderation_inert_deliveries_total",
		Help: "Total number of moderation messages dropped as inert",
	})

	// QueueDeliveries counts queue deliveries by result (acked, retried, dead_lettered).
	QueueDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_queue_deliveries_total",
		Help: "Total number of queue deliveries by result",
	}, []string{"driver", "result"})

	// RateLimitedRequests counts requests turned away by the rate limiter.
	RateLimitedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"resource"})

	// PhotosOptimized counts photos rewritten by the optimizer.
	PhotosOptimized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestbook_photos_optimized_total",
		Help: "Total number of photos processed by the optimizer",
	}, []string{"format", "outcome"})
)

// DatabaseMetrics records query latency for repository calls.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
