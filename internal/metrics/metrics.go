package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors the advice pipeline reports to.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	SimulationSeconds  prometheus.Histogram
	BacktestAccuracy   *prometheus.GaugeVec
	RateFetchFailures  *prometheus.CounterVec
	ResolvedPrediction *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fx",
			Name:      "decisions_total",
			Help:      "Live decisions produced, by pair and decision.",
		}, []string{"pair", "decision"}),
		SimulationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fx",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of one feature, simulation and decision run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		BacktestAccuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fx",
			Name:      "backtest_accuracy_ratio",
			Help:      "Rolling accuracy of the most recent backtest, by pair.",
		}, []string{"pair"}),
		RateFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fx",
			Name:      "rate_fetch_failures_total",
			Help:      "Rate lookups that failed and were skipped.",
		}, []string{"pair"}),
		ResolvedPrediction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fx",
			Name:      "predictions_resolved_total",
			Help:      "Logged predictions resolved against realized rates, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Decisions, m.SimulationSeconds, m.BacktestAccuracy, m.RateFetchFailures, m.ResolvedPrediction)
	}
	return m
}
