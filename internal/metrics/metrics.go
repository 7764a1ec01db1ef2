// Package metrics defines the metrics registry: the Prometheus
// counters, gauges, and histograms the ingest path and baseline drift
// detector update, exposed for scraping at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this system exports: per-test counters and
// duration histogram, system-wide gauges, and the baseline gauges the
// drift detector feeds.
type Registry struct {
	reg *prometheus.Registry

	TestsTotal     *prometheus.CounterVec
	TestsPassed    *prometheus.CounterVec
	TestsFailed    *prometheus.CounterVec
	TestDuration   *prometheus.HistogramVec
	ActiveTests    prometheus.Gauge
	FindingsTotal  prometheus.Counter
	BaselineMean   *prometheus.GaugeVec
	BaselineStddev *prometheus.GaugeVec
}

// testLabelNames bounds per-test cardinality to {name × suite × status}.
var testLabelNames = []string{"name", "suite", "status"}

// baselineLabelNames identifies a baseline gauge by test name and suite.
var baselineLabelNames = []string{"name", "suite"}

// exponentialBuckets is 0.001 × 2^i for i ∈ [0,15).
func exponentialBuckets() []float64 {
	return prometheus.ExponentialBuckets(0.001, 2, 15)
}

// New registers and returns a fresh Registry. Each Registry is independent;
// callers share one process-wide instance via the ingest service.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		TestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liminal_tests_total",
			Help: "Total number of tests ingested.",
		}, testLabelNames),
		TestsPassed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liminal_tests_passed_total",
			Help: "Total number of tests that passed.",
		}, testLabelNames),
		TestsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liminal_tests_failed_total",
			Help: "Total number of tests that failed.",
		}, testLabelNames),
		TestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liminal_test_duration_seconds",
			Help:    "Test execution duration in seconds.",
			Buckets: exponentialBuckets(),
		}, testLabelNames),
		ActiveTests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liminal_active_tests",
			Help: "Number of test executions currently open within a run.",
		}),
		FindingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liminal_findings_total",
			Help: "Total number of resonance/drift findings discovered.",
		}),
		BaselineMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liminal_baseline_duration_mean_ms",
			Help: "Rolling mean duration of a test's history, in milliseconds.",
		}, baselineLabelNames),
		BaselineStddev: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liminal_baseline_duration_stddev_ms",
			Help: "Rolling standard deviation of a test's history, in milliseconds.",
		}, baselineLabelNames),
	}

	reg.MustRegister(
		r.TestsTotal, r.TestsPassed, r.TestsFailed, r.TestDuration,
		r.ActiveTests, r.FindingsTotal, r.BaselineMean, r.BaselineStddev,
	)

	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveTest records a completed test's outcome and duration against the
// per-name/suite/status vectors.
func (r *Registry) ObserveTest(name, suite, status string, durationMs int64, passed bool) {
	labels := prometheus.Labels{"name": name, "suite": suite, "status": status}

	r.TestsTotal.With(labels).Inc()
	r.TestDuration.With(labels).Observe(float64(durationMs) / 1000.0)

	if passed {
		r.TestsPassed.With(labels).Inc()
	} else {
		r.TestsFailed.With(labels).Inc()
	}
}

// SetBaseline records the drift detector's latest mean/stddev for a test.
func (r *Registry) SetBaseline(name, suite string, mean, stddev float64) {
	labels := prometheus.Labels{"name": name, "suite": suite}

	r.BaselineMean.With(labels).Set(mean)
	r.BaselineStddev.With(labels).Set(stddev)
}
