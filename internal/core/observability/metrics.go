package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	storeQuerySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Time until the feature store returned a cursor.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"backend", "outcome"},
	)

	projectedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projector_records_total",
			Help: "Features seen by the result projector, by outcome.",
		},
		[]string{"outcome"},
	)

	searchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_result_events",
			Help:    "Number of events returned per search.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9),
		},
	)

	searchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_errors_total",
			Help: "Failed searches by error class.",
		},
		[]string{"class"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache results by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of Redis operations issued by the response cache.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidation_events_total",
			Help: "Ingest events consumed by the invalidator, by outcome.",
		},
		[]string{"outcome"},
	)

	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_invalidated_keys_total",
			Help: "Response cache keys deleted by invalidation.",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"name"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveStoreQuery(backend, outcome string, durationSeconds float64) {
	storeQuerySeconds.WithLabelValues(backend, outcome).Observe(durationSeconds)
}

func IncProjected(outcome string) {
	projectedRecords.WithLabelValues(outcome).Inc()
}

func ObserveSearchResults(n int) {
	searchResults.Observe(float64(n))
}

func IncSearchError(class string) {
	searchErrors.WithLabelValues(class).Inc()
}

func IncCacheHit()   { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss()  { cacheResults.WithLabelValues("miss").Inc() }
func IncCacheError() { cacheResults.WithLabelValues("error").Inc() }

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOpSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}

func IncInvalidation(outcome string) {
	invalidations.WithLabelValues(outcome).Inc()
}

func AddInvalidatedKeys(n int) {
	if n > 0 {
		invalidatedKeys.Add(float64(n))
	}
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
