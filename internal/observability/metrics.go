package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry *prometheus.Registry

	// OpenWeatherMap API call rate by status. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Provider latency per call. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Calls that had to wait on the client-side rate limiter.
	RateLimitWaitsTotal prometheus.Counter

	// Widget lookups by origin (startup, submit, select) and outcome.
	// Outcome "stale" means the response arrived after a newer request and was dropped.
	WeatherLookupsTotal *prometheus.CounterVec

	// Successful history writes (one per recorded city).
	HistoryWritesTotal prometheus.Counter

	// Entries dropped from the persisted history because their expiry passed.
	HistoryExpiredPurgedTotal prometheus.Counter

	// Entries dropped by the capacity bound on record.
	HistoryEvictionsTotal prometheus.Counter

	// Persisted history that could not be parsed and was reset to empty.
	HistoryCorruptTotal prometheus.Counter

	// Storage operation latency by backend, operation and result.
	StorageOperationDuration *prometheus.HistogramVec

	// Storage errors by backend and operation.
	StorageErrorsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	RateLimitWaitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitWaitsTotal",
			Help: "Total number of provider calls delayed by the client-side rate limiter",
		},
	)
	WeatherLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupsTotal",
			Help: "Widget weather lookups by origin and outcome",
		},
		[]string{"origin", "outcome"},
	)
	HistoryWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyWritesTotal",
			Help: "Total number of cities recorded into search history",
		},
	)
	HistoryExpiredPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyExpiredPurgedTotal",
			Help: "History entries purged on load because their expiry passed",
		},
	)
	HistoryEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyEvictionsTotal",
			Help: "History entries evicted by the capacity bound",
		},
	)
	HistoryCorruptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyCorruptTotal",
			Help: "Persisted history values that failed to parse and were reset",
		},
	)
	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storageOperationDurationSeconds",
			Help:    "Key/value storage latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"backend", "operation", "result"},
	)
	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storageErrorsTotal",
			Help: "Key/value storage errors by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	registry.MustRegister(
		WeatherAPICallsTotal, WeatherAPIDuration, RateLimitWaitsTotal,
		WeatherLookupsTotal,
		HistoryWritesTotal, HistoryExpiredPurgedTotal, HistoryEvictionsTotal, HistoryCorruptTotal,
		StorageOperationDuration, StorageErrorsTotal,
	)
}

// WriteTextfile writes the registry in Prometheus text format for the
// node_exporter textfile collector. The widget runs no listener of its own.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}

// Gatherer exposes the registry for tests and embedding.
func Gatherer() prometheus.Gatherer {
	return registry
}
