package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/fx/backtest"
	"fx-advisor/internal/fx/features"
	"fx-advisor/internal/fx/model"
	"fx-advisor/internal/fx/montecarlo"
	"fx-advisor/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SeriesSource interface {
	CurrentRate(ctx context.Context, base, target string) (float64, error)
	HistoricalSeries(ctx context.Context, base, target string, days int) (domain.RateSeries, error)
}

type PredictionLogger interface {
	Insert(ctx context.Context, p domain.Prediction) (*domain.Prediction, error)
}

type AdviceConfig struct {
	HistoryDays      int
	BacktestDays     int
	BacktestInterval int
	Paths            int
	HorizonDays      int
	Workers          int
	Amount           float64
}

func (c AdviceConfig) withDefaults() AdviceConfig {
	if c.HistoryDays <= 0 {
		c.HistoryDays = backtest.Window
	}
	if c.BacktestDays <= 0 {
		c.BacktestDays = 120
	}
	if c.BacktestInterval <= 0 {
		c.BacktestInterval = backtest.DefaultInterval
	}
	if c.Paths <= 0 {
		c.Paths = montecarlo.DefaultPaths
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = montecarlo.DefaultHorizonDays
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Amount <= 0 {
		c.Amount = 1000
	}
	return c
}

// AdviceService runs the live decision pipeline and historical backtests
// against rates served by a SeriesSource.
type AdviceService struct {
	tracer      trace.Tracer
	rates       SeriesSource
	predictions PredictionLogger
	features    *features.Engine
	forecaster  *montecarlo.Forecaster
	live        *model.SimpleForecastModel
	cfg         AdviceConfig
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewAdviceService accepts a nil predictions logger, in which case live
// analyses are not recorded for later evaluation.
func NewAdviceService(
	tracer trace.Tracer,
	rates SeriesSource,
	predictions PredictionLogger,
	logger zerolog.Logger,
	m *metrics.Metrics,
	cfg AdviceConfig,
) *AdviceService {
	cfg = cfg.withDefaults()
	engine := features.NewEngine()
	forecaster := montecarlo.NewForecaster(montecarlo.WithWorkers(cfg.Workers))
	return &AdviceService{
		tracer:      tracer,
		rates:       rates,
		predictions: predictions,
		features:    engine,
		forecaster:  forecaster,
		live:        model.NewSimpleForecastModel(engine, forecaster, model.Config{HorizonDays: cfg.HorizonDays, Paths: cfg.Paths}),
		cfg:         cfg,
		logger:      logger.With().Str("component", "advice-service").Logger(),
		metrics:     m,
		now:         time.Now,
	}
}

// Analyze produces a live decision for converting base into target.
func (s *AdviceService) Analyze(ctx context.Context, base, target string) (*domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "advice-service.analyze")
	defer span.End()

	base, target, err := normalizePair(base, target)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("fx.pair", pair(base, target)))

	series, err := s.rates.HistoricalSeries(ctx, base, target, s.cfg.HistoryDays)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	if len(series) < features.MinObservations {
		return nil, &domain.InsufficientDataError{Need: features.MinObservations, Have: len(series)}
	}
	current, err := s.rates.CurrentRate(ctx, base, target)
	if err != nil {
		return nil, fmt.Errorf("load current rate: %w", err)
	}
	if !(current > 0) {
		return nil, &domain.InvalidInputError{Field: "current_rate", Reason: "must be positive"}
	}

	started := time.Now()
	out, err := s.live.Predict(series.Rates(), current)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SimulationSeconds.Observe(time.Since(started).Seconds())
	}

	result := model.Assess(out, current)
	expected := montecarlo.Expected(out.Forecast)
	now := s.now().UTC()
	analysis := &domain.Analysis{
		Base:         base,
		Target:       target,
		CurrentRate:  current,
		Features:     out.Features,
		ExpectedRate: expected,
		HorizonDays:  s.cfg.HorizonDays,
		Observations: len(series),
		Result:       result,
		Scenario:     BuildScenario(s.cfg.Amount, current, expected),
		GeneratedAt:  now,
	}

	if s.metrics != nil {
		s.metrics.Decisions.WithLabelValues(pair(base, target), string(result.Decision)).Inc()
	}
	s.logger.Info().
		Str("pair", pair(base, target)).
		Float64("current_rate", current).
		Float64("probability_up", result.ProbabilityUp).
		Str("decision", string(result.Decision)).
		Float64("confidence", result.ConfidenceScore).
		Msg("live analysis")

	s.recordPrediction(ctx, analysis)
	return analysis, nil
}

// Backtest replays the ensemble over the last days of history. Non-positive
// days or interval fall back to the configured defaults.
func (s *AdviceService) Backtest(ctx context.Context, base, target string, days, interval int) (*domain.BacktestReport, error) {
	ctx, span := s.tracer.Start(ctx, "advice-service.backtest")
	defer span.End()

	base, target, err := normalizePair(base, target)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = s.cfg.BacktestDays
	}
	if interval <= 0 {
		interval = s.cfg.BacktestInterval
	}
	span.SetAttributes(
		attribute.String("fx.pair", pair(base, target)),
		attribute.Int("fx.days", days),
		attribute.Int("fx.interval", interval),
	)

	series, err := s.rates.HistoricalSeries(ctx, base, target, days)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	harness := backtest.NewHarness(s.features, s.forecaster, backtest.Config{
		Interval: interval,
		Workers:  s.cfg.Workers,
		Paths:    s.cfg.Paths,
	})
	report, err := harness.Run(series)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil && report.Metrics.Total > 0 {
		s.metrics.BacktestAccuracy.WithLabelValues(pair(base, target)).Set(report.Metrics.RollingAccuracy)
	}
	s.logger.Info().
		Str("pair", pair(base, target)).
		Int("observations", len(series)).
		Int("records", report.Metrics.Total).
		Float64("accuracy", report.Metrics.RollingAccuracy).
		Msg("backtest complete")
	return &report, nil
}

func (s *AdviceService) recordPrediction(ctx context.Context, a *domain.Analysis) {
	if s.predictions == nil {
		return
	}
	p := domain.Prediction{
		Base:               a.Base,
		Target:             a.Target,
		PredictedAt:        a.GeneratedAt,
		TargetDate:         a.GeneratedAt.Truncate(24*time.Hour).AddDate(0, 0, a.HorizonDays),
		PredictedRate:      a.CurrentRate,
		ProbabilityUp:      a.Result.ProbabilityUp,
		PredictedDirection: model.DirectionFromProb(a.Result.ProbabilityUp),
		Decision:           a.Result.Decision,
		Confidence:         a.Result.ConfidenceScore,
	}
	if _, err := s.predictions.Insert(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("pair", pair(a.Base, a.Target)).Msg("failed to record prediction")
	}
}

// BuildScenario values amount at the current and expected rates, each rounded to cents.
func BuildScenario(amount, current, expected float64) domain.Scenario {
	amt := decimal.NewFromFloat(amount)
	today := amt.Mul(decimal.NewFromFloat(current))
	later := amt.Mul(decimal.NewFromFloat(expected))
	return domain.Scenario{
		Amount:        amt.StringFixed(2),
		ValueToday:    today.StringFixed(2),
		ValueExpected: later.StringFixed(2),
		Difference:    later.Sub(today).StringFixed(2),
	}
}

func normalizePair(base, target string) (string, string, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	target = strings.ToLower(strings.TrimSpace(target))
	if !validCurrency(base) {
		return "", "", &domain.InvalidInputError{Field: "base", Reason: "must be a 3 letter currency code"}
	}
	if !validCurrency(target) {
		return "", "", &domain.InvalidInputError{Field: "target", Reason: "must be a 3 letter currency code"}
	}
	if base == target {
		return "", "", &domain.InvalidInputError{Field: "target", Reason: "must differ from base"}
	}
	return base, target, nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
