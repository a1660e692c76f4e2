package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics projects results onto Prometheus collectors held in a private
// registry. RecordResult is the only update path.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	measurement  *prometheus.GaugeVec
	stepDuration *prometheus.HistogramVec
	runTotal     *prometheus.GaugeVec
	failures     *prometheus.CounterVec
}

// NewMetrics creates and registers the regtimer collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regtimer_runs_total",
				Help: "Timed runs by plan and outcome",
			},
			[]string{"plan", "status"},
		),
		measurement: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regtimer_measurement_seconds",
				Help: "Last measured duration per label",
			},
			[]string{"plan", "label"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regtimer_step_duration_seconds",
				Help:    "Distribution of measured durations per label",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"plan", "label"},
		),
		runTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "regtimer_run_total_seconds",
				Help: "Sum of all measurements of the last run",
			},
			[]string{"plan"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regtimer_step_failures_total",
				Help: "Failed steps by plan and label",
			},
			[]string{"plan", "label"},
		),
	}

	m.registry.MustRegister(m.runs, m.measurement, m.stepDuration, m.runTotal, m.failures)
	return m
}

// Registry exposes the registry for HTTP handlers
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordResult updates the collectors from a finished result. Every result
// counts towards runs and failures; only completed ones update timings.
func (m *Metrics) RecordResult(r *Result) {
	m.runs.WithLabelValues(r.Plan, r.Status()).Inc()
	for _, f := range r.Failures {
		m.failures.WithLabelValues(r.Plan, f.Label).Inc()
	}
	if !r.Completed {
		return
	}

	for _, ms := range r.Measurements {
		m.measurement.WithLabelValues(r.Plan, ms.Label).Set(ms.Seconds)
		m.stepDuration.WithLabelValues(r.Plan, ms.Label).Observe(ms.Seconds)
	}
	m.runTotal.WithLabelValues(r.Plan).Set(r.Total)
}

// Exposition renders the registry in the Prometheus text format, as read by
// the node_exporter textfile collector
func (m *Metrics) Exposition() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&b, mf); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// WriteFile writes the exposition to path atomically: the text goes to a
// temporary file in the same directory which is then renamed.
func (m *Metrics) WriteFile(path string) error {
	text, err := m.Exposition()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
