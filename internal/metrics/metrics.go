// Package metrics exposes Prometheus instruments for generation traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for generation attempts.
const (
	OutcomeSuccess  = "success"
	OutcomeCacheHit = "cache_hit"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"
)

// Metrics groups the instruments of one process. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	generations   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	inFlight      *prometheus.GaugeVec
	duration      *prometheus.HistogramVec
	batchFailures *prometheus.CounterVec
	backendUp     prometheus.Gauge
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiator_generations_total",
			Help: "Generation requests by artifact kind and outcome",
		}, []string{"kind", "outcome"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiator_generation_failures_total",
			Help: "Failed generations by artifact kind and error kind",
		}, []string{"kind", "error_kind"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "negotiator_generations_in_flight",
			Help: "Units currently generating",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "negotiator_backend_call_duration_seconds",
			Help:    "Duration of generation backend calls",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		batchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "negotiator_batch_unit_failures_total",
			Help: "Units that failed inside a batch generation",
		}, []string{"kind"}),
		backendUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "negotiator_backend_healthy",
			Help: "1 when the last backend health check passed",
		}),
	}
}

// ObserveGeneration counts one generation attempt.
func (m *Metrics) ObserveGeneration(kind, outcome string) {
	m.generations.WithLabelValues(kind, outcome).Inc()
}

// ObserveFailure counts a classified failure.
func (m *Metrics) ObserveFailure(kind, errorKind string) {
	m.failures.WithLabelValues(kind, errorKind).Inc()
}

// Started marks a unit as generating and returns a func that undoes it and
// records the elapsed backend time.
func (m *Metrics) Started(kind string) func() {
	start := time.Now()
	g := m.inFlight.WithLabelValues(kind)
	g.Inc()
	return func() {
		g.Dec()
		m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// ObserveBatch counts the failed units of a batch.
func (m *Metrics) ObserveBatch(kind string, failed int) {
	if failed > 0 {
		m.batchFailures.WithLabelValues(kind).Add(float64(failed))
	}
}

// SetBackendHealthy records the latest health check result.
func (m *Metrics) SetBackendHealthy(ok bool) {
	if ok {
		m.backendUp.Set(1)
		return
	}
	m.backendUp.Set(0)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
