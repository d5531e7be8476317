// Package observability records what the ingestion service does: Prometheus
// collectors for scraping, and an optional SQLite log of ingest events.
//
// Both sinks are best-effort. A nil *Metrics or *EventLog is valid and
// records nothing, so callers never branch on whether observability is on.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service, registered on a
// private registry.
type Metrics struct {
	registry *prometheus.Registry

	IngestTotal       *prometheus.CounterVec
	IngestDuration    *prometheus.HistogramVec
	IngestBytes       prometheus.Histogram
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	AssessTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		IngestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyvet_ingest_total",
				Help: "Ingestion requests by input kind, detected format and outcome class.",
			},
			[]string{"kind", "format", "outcome"},
		),
		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "policyvet_ingest_duration_seconds",
				Help:    "Ingestion latency in seconds, fetch included.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		IngestBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "policyvet_ingest_bytes",
				Help:    "Size of the raw input of each ingestion.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyvet_http_requests_total",
				Help: "HTTP requests by method, route pattern and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "policyvet_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 30},
			},
			[]string{"method", "route"},
		),
		AssessTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policyvet_assess_total",
				Help: "Assessment calls by outcome class.",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IngestTotal,
		m.IngestDuration,
		m.IngestBytes,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
		m.AssessTotal,
	)
	return m
}

// Registry exposes the private registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest records one ingestion.
func (m *Metrics) ObserveIngest(kind, format, outcome string, bytes int, d time.Duration) {
	if m == nil {
		return
	}
	if format == "" {
		format = "none"
	}
	m.IngestTotal.WithLabelValues(kind, format, outcome).Inc()
	m.IngestDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.IngestBytes.Observe(float64(bytes))
}

// ObserveHTTP records one HTTP exchange. route is the router pattern, never
// the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveAssess records one call to the assessment service.
func (m *Metrics) ObserveAssess(outcome string) {
	if m == nil {
		return
	}
	m.AssessTotal.WithLabelValues(outcome).Inc()
}
