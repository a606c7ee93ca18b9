// Package metrics déclare les métriques Prometheus du serveur.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PoolTitles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roulette_pool_titles",
			Help: "Number of titles currently held by a pool",
		},
		[]string{"country", "type"},
	)

	// PoolReads compte les lectures de pool: hit (titres servis) ou miss (vide/expiré).
	PoolReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_pool_reads_total",
			Help: "Pool reads by result (hit, miss)",
		},
		[]string{"result"},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_refresh_runs_total",
			Help: "Pool refresh passes by outcome",
		},
		[]string{"country", "type", "state"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roulette_refresh_duration_seconds",
			Help:    "Duration of a full pool refresh pass",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"country", "type"},
	)

	RefreshInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roulette_refresh_in_flight",
			Help: "Number of pool refreshes currently running",
		},
	)

	RefreshQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roulette_refresh_queue_depth",
			Help: "Number of pool keys waiting for a refresh worker",
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_upstream_requests_total",
			Help: "Catalog API page requests by result",
		},
		[]string{"result"}, // ok, http_error, network_error, decode_error, rejected
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roulette_upstream_request_duration_seconds",
			Help:    "Latency of catalog API page requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roulette_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	Discover = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roulette_discover_total",
			Help: "Discover requests by outcome (strict, relaxed, none)",
		},
		[]string{"outcome"},
	)

	HistoryUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roulette_pick_history_users",
			Help: "Number of users tracked in the pick history",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roulette_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordRefresh(country, contentType, state string, d time.Duration) {
	RefreshRuns.WithLabelValues(country, contentType, state).Inc()
	RefreshDuration.WithLabelValues(country, contentType).Observe(d.Seconds())
}

func RecordHTTP(method, route, status string, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
