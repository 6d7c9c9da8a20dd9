// Package metrics exposes search counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "keyfinder"

// Metrics holds the search counters. A nil *Metrics discards everything.
type Metrics struct {
	KeysProcessed     prometheus.Counter
	Matches           prometheus.Counter
	Iterations        prometheus.Counter
	Warnings          prometheus.Counter
	ResultOverflows   prometheus.Counter
	LaneFaults        prometheus.Counter
	IterationDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		KeysProcessed:   counter("keys_processed_total", "Private keys tested."),
		Matches:         counter("matches_total", "Keys whose address digest matched a target."),
		Iterations:      counter("iterations_total", "Batch iterations completed."),
		Warnings:        counter("warnings_total", "Input entries skipped with a warning."),
		ResultOverflows: counter("result_overflows_total", "Checks replayed after the result buffer overflowed."),
		LaneFaults:      counter("lane_faults_total", "Lanes aborted after reaching the point at infinity."),
		IterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall time of one batch iteration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.KeysProcessed, m.Matches, m.Iterations, m.Warnings,
			m.ResultOverflows, m.LaneFaults, m.IterationDuration)
	}
	return m
}

// Iteration records one finished iteration covering keys keys.
func (m *Metrics) Iteration(keys uint64, d time.Duration) {
	if m == nil {
		return
	}
	m.Iterations.Inc()
	m.KeysProcessed.Add(float64(keys))
	m.IterationDuration.Observe(d.Seconds())
}

// Match records a reported match.
func (m *Metrics) Match() {
	if m == nil {
		return
	}
	m.Matches.Inc()
}

// Warning records n skipped inputs.
func (m *Metrics) Warning(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Warnings.Add(float64(n))
}

// ResultOverflow records a replayed check.
func (m *Metrics) ResultOverflow() {
	if m == nil {
		return
	}
	m.ResultOverflows.Inc()
}

// LaneFault records n aborted lanes.
func (m *Metrics) LaneFault(n int) {
	if m == nil || n == 0 {
		return
	}
	m.LaneFaults.Add(float64(n))
}
