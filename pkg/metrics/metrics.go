// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	phaseLatency *prometheus.HistogramVec
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insight_engine",
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal status and provider.",
		}, []string{"status", "provider"}),
		phaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "insight_engine",
			Name:      "phase_duration_seconds",
			Help:      "Latency of each pipeline phase.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
	}
}

// ObserveRun records one terminal pipeline outcome.
func (m *Metrics) ObserveRun(status, provider string) {
	m.runsTotal.WithLabelValues(status, provider).Inc()
}

// ObservePhase records the latency of one pipeline phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseLatency.WithLabelValues(phase).Observe(d.Seconds())
}
