// Package metrics provides Prometheus metrics for the import pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Import outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeLLMError = "llm_error"
	OutcomeError    = "error"
)

// Metrics holds the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	imports            *prometheus.CounterVec
	matchTiers         *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	materializations   *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates metrics registered on a fresh registry.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allworkouts_plan_imports_total",
				Help: "Plan text imports by outcome",
			},
			[]string{"outcome"},
		),
		matchTiers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allworkouts_exercise_matches_total",
				Help: "Matched exercise lines by confidence tier",
			},
			[]string{"tier"},
		),
		extractionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "allworkouts_extraction_duration_seconds",
				Help:    "Latency of plan extraction calls",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		materializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allworkouts_plan_materializations_total",
				Help: "Plan materializations by outcome",
			},
			[]string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allworkouts_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allworkouts_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.imports, m.matchTiers, m.extractionDuration,
		m.materializations, m.httpRequests, m.httpDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveImport records one import attempt.
func (m *Metrics) ObserveImport(outcome string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(outcome).Inc()
}

// ObserveTiers records the tier counts of one import.
func (m *Metrics) ObserveTiers(high, medium, low, unmatched int) {
	if m == nil {
		return
	}
	m.matchTiers.WithLabelValues("high").Add(float64(high))
	m.matchTiers.WithLabelValues("medium").Add(float64(medium))
	m.matchTiers.WithLabelValues("low").Add(float64(low))
	m.matchTiers.WithLabelValues("unmatched").Add(float64(unmatched))
}

// ObserveExtraction records the latency of one extraction call.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	if m == nil {
		return
	}
	m.extractionDuration.Observe(d.Seconds())
}

// ObserveMaterialization records one materialization attempt.
func (m *Metrics) ObserveMaterialization(outcome string) {
	if m == nil {
		return
	}
	m.materializations.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
