// Package metrics defines the Prometheus metric collectors used by the
// matching engine and its hosting service, and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	ItemsInjectedTotal     *prometheus.CounterVec
	TransformFailuresTotal *prometheus.CounterVec
	DriveDuration          *prometheus.HistogramVec
	ScoringPassesTotal     *prometheus.CounterVec
	StoreItems             *prometheus.GaugeVec
	MatchedItems           *prometheus.GaugeVec
	ReparseTotal           *prometheus.CounterVec
	JoinsTotal             *prometheus.CounterVec
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ItemsInjectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_items_injected_total",
				Help: "Total items pushed through an injector, by source.",
			},
			[]string{"source"},
		),
		TransformFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_transform_failures_total",
				Help: "Items stored without match text because the transform failed, by source.",
			},
			[]string{"source"},
		),
		DriveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matcher_drive_duration_seconds",
				Help:    "Wall time spent inside Drive calls.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"source"},
		),
		ScoringPassesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_scoring_passes_total",
				Help: "Completed scoring passes by kind (full, narrow, incremental).",
			},
			[]string{"source", "kind"},
		),
		StoreItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matcher_store_items",
				Help: "Items visible in the latest snapshot, by source.",
			},
			[]string{"source"},
		),
		MatchedItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matcher_matched_items",
				Help: "Matched items in the latest snapshot, by source.",
			},
			[]string{"source"},
		),
		ReparseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_reparse_total",
				Help: "Pattern reparses by resulting status (unchanged, update, rescore).",
			},
			[]string{"status"},
		),
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matcher_joins_total",
				Help: "Snapshot joins by outcome (ok, duplicate_identity, error).",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, miss, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ItemsInjectedTotal,
		m.TransformFailuresTotal,
		m.DriveDuration,
		m.ScoringPassesTotal,
		m.StoreItems,
		m.MatchedItems,
		m.ReparseTotal,
		m.JoinsTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
	)

	return m
}
