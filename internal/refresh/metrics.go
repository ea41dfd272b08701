package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the refresh core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     prometheus.Registerer
	runsTotal    *prometheus.CounterVec
	retriesTotal prometheus.Counter
	running      prometheus.Gauge
	runDuration  prometheus.Histogram
}

// InitMetrics registers the refresh instruments with reg, or the default
// registerer when reg is nil.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_runs_total",
				Help:      "Total number of refresh runs",
			},
			[]string{"trigger", "result"},
		),
		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_retry_attempts_total",
				Help:      "Total number of retry attempts across all runs",
			},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "refresh_running",
				Help:      "Whether a refresh run is currently executing",
			},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_run_duration_seconds",
				Help:      "Duration of refresh runs including retries",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.retriesTotal,
		m.running,
		m.runDuration,
	)

	return m
}

// RunStarted marks a run as in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.running.Set(1)
}

// RunFinished records the outcome and duration of a completed run.
func (m *Metrics) RunFinished(trigger Trigger, outcome *RunOutcome, d time.Duration) {
	if m == nil {
		return
	}
	m.running.Set(0)

	result := "success"
	switch {
	case outcome.Failed():
		result = "error"
	case len(outcome.FinalFailedPriceIDs) > 0 || len(outcome.FinalFailedBenchmarkIDs) > 0 || !outcome.FinalCurrencyOK:
		result = "partial"
	}
	m.runsTotal.WithLabelValues(string(trigger), result).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RetryAttempt counts one retry invocation.
func (m *Metrics) RetryAttempt() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}
