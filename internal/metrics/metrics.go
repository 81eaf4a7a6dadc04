// Package metrics holds the Prometheus instruments for Folio.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a private registry plus the instruments registered on it
type Metrics struct {
	registry *prometheus.Registry

	RefreshCycles   *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	Fetches         *prometheus.CounterVec
	CacheReads      *prometheus.CounterVec
	CacheEntries    prometheus.Gauge
}

// New creates the registry and registers every instrument on it
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RefreshCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_refresh_cycles_total",
				Help: "Refresh cycles by outcome (completed, failed, skipped, empty)",
			},
			[]string{"outcome"},
		),

		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "folio_refresh_cycle_duration_seconds",
				Help:    "Wall time of refresh cycles that ran",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_fetches_total",
				Help: "Market data fetches by source and result",
			},
			[]string{"source", "result"},
		),

		CacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_cache_reads_total",
				Help: "Cache reads by mode (strict, stale) and result (hit, miss, expired)",
			},
			[]string{"mode", "result"},
		),

		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "folio_cache_entries",
				Help: "Entries currently held by the cache store",
			},
		),
	}

	m.registry.MustRegister(
		m.RefreshCycles,
		m.RefreshDuration,
		m.Fetches,
		m.CacheReads,
		m.CacheEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry (used by tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records a cycle outcome. Duration is only recorded for cycles
// that actually ran.
func (m *Metrics) ObserveCycle(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.RefreshDuration.Observe(elapsed.Seconds())
	}
}

// ObserveFetch records one fetch attempt
func (m *Metrics) ObserveFetch(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Fetches.WithLabelValues(source, result).Inc()
}

// ObserveCacheRead records one cache read
func (m *Metrics) ObserveCacheRead(mode, result string) {
	if m == nil {
		return
	}
	m.CacheReads.WithLabelValues(mode, result).Inc()
}

// SetCacheEntries sets the cache size gauge
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}
