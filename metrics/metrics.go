package metrics

import (
	"ewintr.nl/shortscout/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortscout"

type Metrics struct {
	candidates     *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	quotaConsumed  prometheus.Counter
	quotaRemaining prometheus.Gauge
	runDuration    prometheus.Histogram
	runs           *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates handled, by source and outcome",
		}, []string{"source", "outcome"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Candidates turned down, by reason",
		}, []string{"reason"}),
		quotaConsumed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_consumed_units_total",
			Help:      "Provider quota units spent by discovery runs",
		}),
		quotaRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining_units",
			Help:      "Provider quota units left in the current period after the last run",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of discovery runs",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Discovery runs, by whether they ended early and why",
		}, []string{"partial", "stop_reason"}),
	}
}

func (m *Metrics) CandidateOutcome(source model.Source, outcome string) {
	m.candidates.WithLabelValues(string(source), outcome).Inc()
}

func (m *Metrics) Rejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RunFinished(r *model.RunReport) {
	partial := "false"
	if r.Partial {
		partial = "true"
	}
	m.runs.WithLabelValues(partial, string(r.StopReason)).Inc()
	m.quotaConsumed.Add(float64(r.QuotaConsumed))
	m.quotaRemaining.Set(float64(r.QuotaRemaining))
	if d := r.FinishedAt.Sub(r.StartedAt); d >= 0 {
		m.runDuration.Observe(d.Seconds())
	}
}
