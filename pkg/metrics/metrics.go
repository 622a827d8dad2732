// Package metrics defines the Prometheus metric collectors for the
// compliance engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	SnapshotRefreshTotal    *prometheus.CounterVec
	SnapshotRefreshDuration *prometheus.HistogramVec
	SnapshotRecordCount     *prometheus.GaugeVec
	SnapshotCacheHitsTotal  *prometheus.CounterVec
	SnapshotStaleServed     *prometheus.CounterVec

	MatchResultsTotal    *prometheus.CounterVec
	AggregateDuration    *prometheus.HistogramVec
	CriticalReportsTotal *prometheus.CounterVec

	ReportCacheHitsTotal   prometheus.Counter
	ReportCacheMissesTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		SnapshotRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabulary_snapshot_refresh_total",
				Help: "Snapshot refresh attempts by vocabulary and outcome (refreshed, failed, invalid_data).",
			},
			[]string{"vocabulary", "outcome"},
		),
		SnapshotRefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocabulary_snapshot_refresh_seconds",
				Help:    "Snapshot refresh latency in seconds, including the store fetch.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"vocabulary"},
		),
		SnapshotRecordCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vocabulary_snapshot_records",
				Help: "Number of records in the live snapshot per vocabulary.",
			},
			[]string{"vocabulary"},
		),
		SnapshotCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabulary_cache_gets_total",
				Help: "Snapshot cache gets by vocabulary and result (hit, miss).",
			},
			[]string{"vocabulary", "result"},
		),
		SnapshotStaleServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabulary_snapshot_stale_served_total",
				Help: "Expired snapshots served because the refresh failed.",
			},
			[]string{"vocabulary"},
		),
		MatchResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingredient_match_results_total",
				Help: "Ingredient match outcomes by vocabulary and match type.",
			},
			[]string{"vocabulary", "match_type"},
		),
		AggregateDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "compliance_aggregate_seconds",
				Help:    "Latency of one compliance aggregation over an ingredient list.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"vocabulary"},
		),
		CriticalReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compliance_critical_reports_total",
				Help: "Reports flagged critical, by vocabulary.",
			},
			[]string{"vocabulary"},
		),
		ReportCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "report_cache_hits_total",
				Help: "Total number of report cache hits.",
			},
		),
		ReportCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "report_cache_misses_total",
				Help: "Total number of report cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SnapshotRefreshTotal,
		m.SnapshotRefreshDuration,
		m.SnapshotRecordCount,
		m.SnapshotCacheHitsTotal,
		m.SnapshotStaleServed,
		m.MatchResultsTotal,
		m.AggregateDuration,
		m.CriticalReportsTotal,
		m.ReportCacheHitsTotal,
		m.ReportCacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
