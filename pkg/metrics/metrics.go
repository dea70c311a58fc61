package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// DB query latency (seconds)
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
	)

	// streak / progress computation latency, including the store round trip
	StreakComputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streak_computation_duration_seconds",
			Help:    "Streak and progress computation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"}, // streak, update, progress
	)

	HabitTrackedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_tracked_count",
			Help: "Total number of track requests by outcome",
		},
		[]string{"outcome"}, // created, existing, raced
	)

	ProgressCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_cache_count",
			Help: "Progress cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_count",
			Help: "Total number of domain events published",
		},
		[]string{"routing_key", "status"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

func RecordStreakComputation(operation string, duration time.Duration) {
	StreakComputationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementHabitTracked(outcome string) {
	HabitTrackedCount.WithLabelValues(outcome).Inc()
}

func IncrementProgressCache(result string) {
	ProgressCacheCount.WithLabelValues(result).Inc()
}

func IncrementEventPublished(routingKey, status string) {
	EventPublishedCount.WithLabelValues(routingKey, status).Inc()
}
