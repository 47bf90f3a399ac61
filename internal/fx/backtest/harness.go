package backtest

import (
	"fmt"
	"time"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/fx/model"
	"fx-advisor/internal/fx/risk"

	"golang.org/x/sync/errgroup"
)

const (
	// Window is the number of observations fed to the model at each cursor.
	Window      = 40
	HorizonDays = 7
	// MinObservations is the shortest series that yields at least one record.
	MinObservations = Window + HorizonDays + 1
	DefaultInterval = 2
)

type Config struct {
	Interval int
	Workers  int
	Paths    int
}

// Harness replays the ensemble model over a historical series and scores
// each prediction against the rate observed HorizonDays steps later.
type Harness struct {
	model    *model.EnsembleModel
	interval int
	workers  int
}

func NewHarness(features model.FeatureComputer, sim model.Simulator, cfg Config) *Harness {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Harness{
		model:    model.NewEnsembleModel(features, sim, model.Config{HorizonDays: HorizonDays, Paths: cfg.Paths}),
		interval: cfg.Interval,
		workers:  cfg.Workers,
	}
}

// Cursors lists the evaluation indexes for a series of length n.
func (h *Harness) Cursors(n int) []int {
	var out []int
	for i := Window; i < n-HorizonDays; i += h.interval {
		out = append(out, i)
	}
	return out
}

// Run returns an empty report when the series is shorter than MinObservations.
func (h *Harness) Run(series domain.RateSeries) (domain.BacktestReport, error) {
	if err := series.Validate(); err != nil {
		return domain.BacktestReport{}, err
	}
	if len(series) < MinObservations {
		return domain.BacktestReport{Records: []domain.BacktestRecord{}, Metrics: CalcMetrics(nil)}, nil
	}

	rates := series.Rates()
	dates := series.Dates()
	cursors := h.Cursors(len(series))
	records := make([]domain.BacktestRecord, len(cursors))

	var g errgroup.Group
	g.SetLimit(h.workers)
	for k, i := range cursors {
		g.Go(func() error {
			rec, err := h.evaluate(dates, rates, i)
			if err != nil {
				return fmt.Errorf("backtest at %s: %w", dates[i].Format(domain.DateLayout), err)
			}
			records[k] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BacktestReport{}, err
	}

	return domain.BacktestReport{Records: records, Metrics: CalcMetrics(records)}, nil
}

func (h *Harness) evaluate(dates []time.Time, rates []float64, i int) (domain.BacktestRecord, error) {
	hist := rates[i-Window : i]
	current := hist[len(hist)-1]

	out, err := h.model.Predict(hist, current)
	if err != nil {
		return domain.BacktestRecord{}, err
	}

	actual := rates[i+HorizonDays]
	predicted := model.DirectionFromProb(out.ProbabilityUp)
	realized := domain.DirectionOf(current, actual)
	return domain.BacktestRecord{
		PredictionDate:     dates[i],
		PredictedRate:      current,
		ActualRate:         actual,
		PredictedDirection: predicted,
		ActualDirection:    realized,
		WasCorrect:         predicted == realized,
		Confidence:         risk.ConfidenceScore(out.ProbabilityUp, out.Features.Volatility),
	}, nil
}
