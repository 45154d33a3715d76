// Package metrics exposes Prometheus instrumentation for runs, steps and
// variable resolution. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics holds the collectors recorded during a run.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	StepsTotal     *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	VariablesTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runbook_runs_total",
			Help: "Completed runs by final status.",
		}, []string{"status"}),
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runbook_steps_total",
			Help: "Executed steps by status.",
		}, []string{"status"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runbook_step_duration_seconds",
			Help:    "Step command duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"parallel"}),
		VariablesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runbook_variables_resolved_total",
			Help: "Resolved variables by source.",
		}, []string{"source"}),
	}
	m.registry.MustRegister(m.RunsTotal, m.StepsTotal, m.StepDuration, m.VariablesTotal)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(ok bool) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status(ok)).Inc()
}

// ObserveStep counts a step and records its duration.
func (m *Metrics) ObserveStep(ok, parallel bool, d time.Duration) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(status(ok)).Inc()
	label := "false"
	if parallel {
		label = "true"
	}
	m.StepDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveVariable counts a resolved variable by source (literal|command).
func (m *Metrics) ObserveVariable(source string) {
	if m == nil {
		return
	}
	m.VariablesTotal.WithLabelValues(source).Inc()
}

func status(ok bool) string {
	if ok {
		return StatusSucceeded
	}
	return StatusFailed
}
