package features

import (
	"fmt"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/ta"

	"gonum.org/v1/gonum/stat"
)

const (
	shortWindow      = 7
	longWindow       = 30
	volatilityWindow = 30
	// slope compares against the observation 7 steps before the previous one
	slopeLookback = 8
	rsiPeriod     = 14
	bbPeriod      = 20
	bbStdDevs     = 2.0
)

// MinObservations is the shortest series Compute accepts.
const MinObservations = longWindow

type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Compute derives the feature snapshot of rates as of its last observation.
// current is the spot rate momentum is measured against; live callers pass a
// freshly fetched rate, backtests pass the last observation.
func (e *Engine) Compute(rates []float64, current float64) (domain.FeatureSet, error) {
	if current <= 0 {
		return domain.FeatureSet{}, &domain.InvalidInputError{Field: "current_rate", Reason: "must be positive"}
	}
	n := len(rates)
	if n < MinObservations {
		return domain.FeatureSet{}, &domain.InsufficientDataError{Need: MinObservations, Have: n}
	}

	drift, err := Drift(rates)
	if err != nil {
		return domain.FeatureSet{}, err
	}
	ma7, err := ta.MovingAverage(rates, shortWindow)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("ma%d: %w", shortWindow, err)
	}
	ma30, err := ta.MovingAverage(rates, longWindow)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("ma%d: %w", longWindow, err)
	}
	rsi, err := ta.RSI(rates, rsiPeriod)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("rsi: %w", err)
	}
	bb, err := ta.BollingerPosition(current, rates, bbPeriod, bbStdDevs)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("bollinger: %w", err)
	}

	latestMA7 := ma7[len(ma7)-1]
	return domain.FeatureSet{
		MA7:               latestMA7,
		MA30:              ma30[len(ma30)-1],
		Momentum:          current - latestMA7,
		Slope:             rates[n-1] - rates[n-slopeLookback],
		Volatility:        Volatility(rates),
		RSI:               rsi,
		BollingerPosition: bb,
		Drift:             drift,
	}, nil
}

// Drift is the mean of the full log-return history.
func Drift(rates []float64) (float64, error) {
	rets, err := ta.LogReturns(rates)
	if err != nil {
		return 0, err
	}
	return stat.Mean(rets, nil), nil
}

// Volatility is the population standard deviation of the trailing raw rates,
// not of the log returns drift is computed from.
func Volatility(rates []float64) float64 {
	window := rates
	if len(window) > volatilityWindow {
		window = window[len(window)-volatilityWindow:]
	}
	_, std := ta.MeanStd(window)
	return std
}
