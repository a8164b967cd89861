// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by Run. A nil *Metrics
// records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	stages   *prometheus.HistogramVec
	degraded prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "research_runs_total",
				Help: "Research requests by final outcome and, for failures, the failing stage",
			},
			[]string{"outcome", "stage"},
		),
		stages: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "research_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		degraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "research_degraded_findings_total",
				Help: "Findings that carried no synthesized content",
			},
		),
	}
	reg.MustRegister(m.runs, m.stages, m.degraded)
	return m
}

func (m *Metrics) observeRun(stage State) {
	if m == nil {
		return
	}
	if stage == StateCompleted {
		m.runs.WithLabelValues("completed", "").Inc()
		return
	}
	m.runs.WithLabelValues("failed", string(stage)).Inc()
}

func (m *Metrics) observeStage(stage State, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) observeDegraded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.degraded.Add(float64(n))
}
