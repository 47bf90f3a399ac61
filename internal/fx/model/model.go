package model

import (
	"fmt"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/fx/montecarlo"
	"fx-advisor/internal/fx/risk"
	"fx-advisor/internal/ta"
)

const (
	waitAbove    = 0.6
	sendNowBelow = 0.4
)

type FeatureComputer interface {
	Compute(rates []float64, current float64) (domain.FeatureSet, error)
}

type Simulator interface {
	Simulate(current, drift, volatility float64, horizonDays, paths int) (domain.ForecastDistribution, error)
}

// ProbabilityModel estimates the probability that the rate ends the horizon
// strictly above current.
type ProbabilityModel interface {
	Name() string
	Predict(rates []float64, current float64) (Output, error)
}

type Output struct {
	ProbabilityUp float64
	Features      domain.FeatureSet
	Forecast      domain.ForecastDistribution
}

type Config struct {
	HorizonDays int
	Paths       int
}

func (c Config) withDefaults() Config {
	if c.HorizonDays <= 0 {
		c.HorizonDays = montecarlo.DefaultHorizonDays
	}
	if c.Paths <= 0 {
		c.Paths = montecarlo.DefaultPaths
	}
	return c
}

// pipeline is the feature and simulation step both model variants share.
type pipeline struct {
	features FeatureComputer
	sim      Simulator
	cfg      Config
}

func (p pipeline) run(rates []float64, current float64) (domain.FeatureSet, domain.ForecastDistribution, error) {
	fs, err := p.features.Compute(rates, current)
	if err != nil {
		return domain.FeatureSet{}, nil, fmt.Errorf("compute features: %w", err)
	}
	forecast, err := p.sim.Simulate(current, fs.Drift, fs.Volatility, p.cfg.HorizonDays, p.cfg.Paths)
	if err != nil {
		return domain.FeatureSet{}, nil, fmt.Errorf("simulate: %w", err)
	}
	return fs, forecast, nil
}

// SimpleForecastModel reads the probability straight off the simulated distribution.
type SimpleForecastModel struct {
	pipeline
}

func NewSimpleForecastModel(features FeatureComputer, sim Simulator, cfg Config) *SimpleForecastModel {
	return &SimpleForecastModel{pipeline{features: features, sim: sim, cfg: cfg.withDefaults()}}
}

func (m *SimpleForecastModel) Name() string { return "simple_forecast" }

func (m *SimpleForecastModel) Predict(rates []float64, current float64) (Output, error) {
	fs, forecast, err := m.run(rates, current)
	if err != nil {
		return Output{}, err
	}
	return Output{
		ProbabilityUp: ta.Clamp(montecarlo.ProbabilityAbove(forecast, current), 0, 1),
		Features:      fs,
		Forecast:      forecast,
	}, nil
}

func Decide(probabilityUp float64) domain.Decision {
	switch {
	case probabilityUp > waitAbove:
		return domain.DecisionWait
	case probabilityUp < sendNowBelow:
		return domain.DecisionSendNow
	default:
		return domain.DecisionNeutral
	}
}

// DirectionFromProb calls up only when the probability is strictly above one half.
func DirectionFromProb(probabilityUp float64) domain.Direction {
	if probabilityUp > 0.5 {
		return domain.DirectionUp
	}
	return domain.DirectionDown
}

// Assess turns a model output into the decision reported to callers.
func Assess(out Output, current float64) domain.DecisionResult {
	prob := ta.Clamp(out.ProbabilityUp, 0, 1)
	band := ta.Clamp(risk.BandConfidence(out.Forecast, current), 0, 1)
	return domain.DecisionResult{
		ProbabilityUp:      prob,
		Decision:           Decide(prob),
		RiskBandConfidence: band,
		RiskLabel:          risk.Label(band),
		ConfidenceScore:    risk.ConfidenceScore(prob, out.Features.Volatility),
	}
}
