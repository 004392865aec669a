package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// prometheusNamespace is the prometheus namespace for the metrics.
	prometheusNamespace = "loglayout"
	// outcomeLabel distinguishes committed from discarded runs.
	outcomeLabel = "outcome"

	outcomeCommitted = "committed"
	outcomeDiscarded = "discarded"
)

// Metrics are the pipeline run metrics shared by all sessions.
type Metrics struct {
	// runsRequested counts accepted re-run requests.
	runsRequested prometheus.Counter
	// runsFinished counts finished runs by outcome.
	runsFinished *prometheus.CounterVec
	// runDuration observes committed run durations.
	runDuration prometheus.Histogram
	// linesProcessed counts source lines fed into committed runs.
	linesProcessed prometheus.Counter
	// diagnostics counts layers that were skipped because of bad config.
	diagnostics prometheus.Counter
	// sessions is the number of open sessions.
	sessions prometheus.Gauge
}

// RegisterMetrics registers the run metrics and returns a handle to update them.
func RegisterMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "runs_requested_total",
			Help:      "Number of pipeline runs requested.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "runs_finished_total",
			Help:      "Number of pipeline runs that finished, by outcome.",
		}, []string{outcomeLabel}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: prometheusNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of committed pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		linesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "lines_processed_total",
			Help:      "Source lines processed by committed runs.",
		}),
		diagnostics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "layer_diagnostics_total",
			Help:      "Layers skipped because of an invalid configuration.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "open_sessions",
			Help:      "Number of open log sessions.",
		}),
	}

	reg.MustRegister(m.runsRequested)
	reg.MustRegister(m.runsFinished)
	reg.MustRegister(m.runDuration)
	reg.MustRegister(m.linesProcessed)
	reg.MustRegister(m.diagnostics)
	reg.MustRegister(m.sessions)

	return m
}

// The methods below accept a nil receiver so metrics stay optional.

func (m *Metrics) requested() {
	if m != nil {
		m.runsRequested.Inc()
	}
}

func (m *Metrics) committed(res *Result) {
	if m == nil {
		return
	}
	m.runsFinished.With(prometheus.Labels{outcomeLabel: outcomeCommitted}).Inc()
	m.runDuration.Observe(res.Duration.Seconds())
	m.linesProcessed.Add(float64(res.SourceLines))
	m.diagnostics.Add(float64(len(res.Diagnostics)))
}

func (m *Metrics) discarded() {
	if m != nil {
		m.runsFinished.With(prometheus.Labels{outcomeLabel: outcomeDiscarded}).Inc()
	}
}

// SessionOpened adjusts the open session gauge.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

// SessionClosed adjusts the open session gauge.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}
