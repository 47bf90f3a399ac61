package montecarlo

import (
	"math"
	"math/rand/v2"
	"sync/atomic"

	"fx-advisor/internal/domain"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultPaths       = 1000
	DefaultHorizonDays = 7
)

// Forecaster simulates terminal rates under geometric Brownian motion.
// Paths are split across workers, each drawing from its own PCG stream, so a
// fixed seed and worker count reproduce the same distribution call by call.
type Forecaster struct {
	seed    uint64
	workers int
	calls   atomic.Uint64
}

type Option func(*Forecaster)

func WithSeed(seed uint64) Option {
	return func(f *Forecaster) { f.seed = seed }
}

func WithWorkers(n int) Option {
	return func(f *Forecaster) {
		if n > 0 {
			f.workers = n
		}
	}
}

func NewForecaster(opts ...Option) *Forecaster {
	f := &Forecaster{seed: rand.Uint64(), workers: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Simulate returns paths terminal rates, each the product of horizonDays
// shocks exp(x) with x ~ Normal(drift, volatility) starting from current.
func (f *Forecaster) Simulate(current, drift, volatility float64, horizonDays, paths int) (domain.ForecastDistribution, error) {
	if err := validate(current, drift, volatility, horizonDays, paths); err != nil {
		return nil, err
	}

	call := f.calls.Add(1)
	out := make(domain.ForecastDistribution, paths)

	workers := min(f.workers, paths)
	chunk := (paths + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, paths)
		if lo >= hi {
			break
		}
		shock := distuv.Normal{
			Mu:    drift,
			Sigma: volatility,
			Src:   rand.NewPCG(f.seed, call<<16|uint64(w)),
		}
		g.Go(func() error {
			for p := lo; p < hi; p++ {
				rate := current
				for d := 0; d < horizonDays; d++ {
					rate *= math.Exp(shock.Rand())
				}
				out[p] = rate
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func validate(current, drift, volatility float64, horizonDays, paths int) error {
	switch {
	case !finite(current) || current <= 0:
		return &domain.InvalidInputError{Field: "current_rate", Reason: "must be a positive finite number"}
	case !finite(drift):
		return &domain.InvalidInputError{Field: "drift", Reason: "must be finite"}
	case !finite(volatility) || volatility < 0:
		return &domain.InvalidInputError{Field: "volatility", Reason: "must be a non-negative finite number"}
	case horizonDays <= 0:
		return &domain.InvalidInputError{Field: "horizon_days", Reason: "must be positive"}
	case paths <= 0:
		return &domain.InvalidInputError{Field: "path_count", Reason: "must be positive"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ProbabilityAbove is the fraction of simulated rates strictly greater than level.
func ProbabilityAbove(forecast domain.ForecastDistribution, level float64) float64 {
	if len(forecast) == 0 {
		return 0
	}
	above := 0
	for _, v := range forecast {
		if v > level {
			above++
		}
	}
	return float64(above) / float64(len(forecast))
}

// Expected is the mean simulated terminal rate.
func Expected(forecast domain.ForecastDistribution) float64 {
	if len(forecast) == 0 {
		return 0
	}
	return stat.Mean(forecast, nil)
}
