// Package telemetry exposes Prometheus collectors for report generation.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors used by the report generator
type Metrics struct {
	registry *prometheus.Registry

	ReportsTotal      *prometheus.CounterVec
	ReportDuration    prometheus.Histogram
	StoreComputations *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storemonitor",
			Name:      "reports_total",
			Help:      "Reports finished, by terminal status.",
		}, []string{"status"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storemonitor",
			Name:      "report_duration_seconds",
			Help:      "Wall time spent generating a report.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		StoreComputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storemonitor",
			Name:      "store_computations_total",
			Help:      "Per-store metric computations, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReportsTotal,
		m.ReportDuration,
		m.StoreComputations,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
