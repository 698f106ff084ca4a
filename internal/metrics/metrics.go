package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query cache
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_cache_requests_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviecatalog_cache_invalidations_total",
			Help: "Keys or prefixes invalidated after writes",
		},
	)

	CacheStaleDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviecatalog_cache_stale_discards_total",
			Help: "Computed values not stored because the key was invalidated meanwhile",
		},
	)

	// Catalog provider
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_provider_requests_total",
			Help: "Requests to the catalog provider by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviecatalog_provider_request_duration_seconds",
			Help:    "Catalog provider request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviecatalog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Sync orchestrator
	SyncPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_sync_pages_total",
			Help: "Synced pages by category and outcome",
		},
		[]string{"category", "outcome"}, // "succeeded", "failed", "empty"
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_sync_records_total",
			Help: "Records processed by the syncer",
		},
		[]string{"action"}, // "created", "updated", "skipped"
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_sync_runs_total",
			Help: "Finished sync runs by category and final state",
		},
		[]string{"category", "state"},
	)

	SyncRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_sync_retries_total",
			Help: "Retries and pauses taken by the syncer",
		},
		[]string{"reason"}, // "transient", "rate_limited", "store_unavailable"
	)

	// Maintenance
	MoviesRefreshed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_movies_refreshed_total",
			Help: "Stored movies re-fetched from the provider by outcome",
		},
		[]string{"outcome"}, // "refreshed", "failed"
	)

	StaleMoviesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moviecatalog_stale_movies_removed_total",
			Help: "Unrated low-popularity movies removed by maintenance",
		},
	)

	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviecatalog_http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviecatalog_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
