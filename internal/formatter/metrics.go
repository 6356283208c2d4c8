package formatter

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/gmx/internal/tasks"
)

// Metrics holds the collectors for a single run, registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
	retries  prometheus.Counter
	failed   prometheus.Gauge
	runTime  prometheus.Gauge
}

// NewMetrics creates and registers the run collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmx",
			Name:      "step_outcomes_total",
			Help:      "Step results by group, step and outcome.",
		}, []string{"group", "step", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gmx",
			Name:      "step_duration_seconds",
			Help:      "Wall time spent in each step, including waits.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"group", "step"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gmx",
			Name:      "step_attempts_total",
			Help:      "Polls made while waiting for the library to converge.",
		}, []string{"group", "step"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gmx",
			Name:      "retry_waits_total",
			Help:      "Backoff waits across the run.",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gmx",
			Name:      "run_failed",
			Help:      "1 when any step failed.",
		}),
		runTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gmx",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the whole run.",
		}),
	}
	m.registry.MustRegister(m.outcomes, m.duration, m.attempts, m.retries, m.failed, m.runTime)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records every step of report.
func (m *Metrics) Observe(report *tasks.Report) {
	for _, res := range report.Results {
		m.outcomes.WithLabelValues(res.Group, res.Step, res.Outcome.String()).Inc()
		if res.Outcome == tasks.Skipped {
			continue
		}
		m.duration.WithLabelValues(res.Group, res.Step).Observe(res.Duration.Seconds())
		m.attempts.WithLabelValues(res.Group, res.Step).Add(float64(res.Attempts))
	}

	m.retries.Add(float64(report.Retries))
	m.runTime.Set(report.Duration().Seconds())
	if report.Failed() {
		m.failed.Set(1)
	} else {
		m.failed.Set(0)
	}
}

// WriteMetrics writes report as a Prometheus text file (node_exporter textfile collector format).
func WriteMetrics(path string, report *tasks.Report) error {
	m := NewMetrics()
	m.Observe(report)

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
