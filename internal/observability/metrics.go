package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// StoreOperationLatency records document store latency by operation and collection group.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unify_store_operation_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// StoreErrors counts failed document store operations.
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_store_errors_total",
		Help: "Total number of failed document store operations",
	}, []string{"operation", "collection"})

	// ActivitySubFetches counts per-post comment fetches by outcome.
	ActivitySubFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_activity_subfetch_total",
		Help: "Per-post comment sub-fetches performed by the activity aggregator",
	}, []string{"kind", "outcome"})

	// ActivityFinalized counts published feeds by strategy.
	ActivityFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_activity_finalized_total",
		Help: "Activity feeds finalized",
	}, []string{"kind", "strategy"})

	// ActivityScanDuration records the time from scan start to feed publication.
	ActivityScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unify_activity_scan_duration_seconds",
		Help:    "Activity feed computation time in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "strategy"})

	// CascadePosts counts per-post cascade batches by outcome.
	CascadePosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_cascade_posts_total",
		Help: "Per-post cascade batches by outcome",
	}, []string{"outcome"})

	// CascadeRuns counts hub deletion runs by terminal state.
	CascadeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_cascade_runs_total",
		Help: "Hub deletion runs by terminal state",
	}, []string{"state"})

	// ListToggles counts saved/cart mutations by list, action and outcome.
	ListToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unify_list_toggles_total",
		Help: "Saved and cart set mutations",
	}, []string{"list", "action", "outcome"})
)

// TrackStoreOperation returns a function that records latency when called (e.g. defer).
func TrackStoreOperation(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreOperationLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// OutcomeLabel turns an error into the "ok"/"error" metric label.
func OutcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
