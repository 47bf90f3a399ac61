package model

import (
	"fx-advisor/internal/domain"
	"fx-advisor/internal/fx/montecarlo"
	"fx-advisor/internal/ta"
)

const (
	reversionUpper = 1.01
	reversionLower = 0.99
	rsiOverbought  = 70
	rsiOversold    = 30
)

// Components are the independent probability signals the ensemble blends.
type Components struct {
	MonteCarlo    float64 `json:"monte_carlo"`
	MeanReversion float64 `json:"mean_reversion"`
	Momentum      float64 `json:"momentum"`
	Trend         float64 `json:"trend"`
	RSI           float64 `json:"rsi"`
	Bollinger     float64 `json:"bollinger"`
}

type Weights Components

var DefaultWeights = Weights{
	MonteCarlo:    0.20,
	MeanReversion: 0.25,
	Momentum:      0.15,
	Trend:         0.15,
	RSI:           0.15,
	Bollinger:     0.10,
}

func (w Weights) Sum() float64 {
	return w.MonteCarlo + w.MeanReversion + w.Momentum + w.Trend + w.RSI + w.Bollinger
}

// Score is the weighted sum of the components, clamped to [0, 1].
func (w Weights) Score(c Components) float64 {
	score := w.MonteCarlo*c.MonteCarlo +
		w.MeanReversion*c.MeanReversion +
		w.Momentum*c.Momentum +
		w.Trend*c.Trend +
		w.RSI*c.RSI +
		w.Bollinger*c.Bollinger
	return ta.Clamp(score, 0, 1)
}

// Signals maps a feature snapshot onto the ensemble components.
func Signals(fs domain.FeatureSet, current, monteCarloProb float64) Components {
	c := Components{
		MonteCarlo:    monteCarloProb,
		MeanReversion: 0.5,
		Momentum:      0.5,
		Trend:         0.5,
		RSI:           0.5,
		Bollinger:     1 - fs.BollingerPosition,
	}

	switch {
	case current > fs.MA30*reversionUpper:
		c.MeanReversion = 0.2
	case current < fs.MA30*reversionLower:
		c.MeanReversion = 0.8
	}

	if fs.Volatility > 0 {
		c.Momentum = 0.5 + 0.3*fs.Momentum/fs.Volatility
		c.Trend = 0.5 + 0.2*fs.Slope/fs.Volatility
	}

	switch {
	case fs.RSI > rsiOverbought:
		c.RSI = 0.25
	case fs.RSI < rsiOversold:
		c.RSI = 0.75
	}
	return c
}

// EnsembleModel blends the simulated probability with mean-reversion,
// momentum, trend, RSI and Bollinger signals.
type EnsembleModel struct {
	pipeline
	weights Weights
}

func NewEnsembleModel(features FeatureComputer, sim Simulator, cfg Config) *EnsembleModel {
	return &EnsembleModel{
		pipeline: pipeline{features: features, sim: sim, cfg: cfg.withDefaults()},
		weights:  DefaultWeights,
	}
}

func (m *EnsembleModel) Name() string { return "ensemble" }

func (m *EnsembleModel) Predict(rates []float64, current float64) (Output, error) {
	fs, forecast, err := m.run(rates, current)
	if err != nil {
		return Output{}, err
	}
	components := Signals(fs, current, montecarlo.ProbabilityAbove(forecast, current))
	return Output{
		ProbabilityUp: m.weights.Score(components),
		Features:      fs,
		Forecast:      forecast,
	}, nil
}

var (
	_ ProbabilityModel = (*SimpleForecastModel)(nil)
	_ ProbabilityModel = (*EnsembleModel)(nil)
)
