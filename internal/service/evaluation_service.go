package service

import (
	"context"
	"time"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/fx/backtest"
	"fx-advisor/internal/metrics"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultResolveBatch = 100

type PredictionStore interface {
	ListUnresolvedDue(ctx context.Context, asOf time.Time, limit int) ([]domain.Prediction, error)
	Resolve(ctx context.Context, id int64, actualRate float64, wasCorrect bool, resolvedAt time.Time) error
	ListResolvedSince(ctx context.Context, since time.Time) ([]domain.Prediction, error)
}

type DatedRateSource interface {
	RateOn(ctx context.Context, base, target string, date time.Time) (float64, error)
}

// EvaluationService scores logged live predictions once their target date
// has passed.
type EvaluationService struct {
	tracer      trace.Tracer
	predictions PredictionStore
	rates       DatedRateSource
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewEvaluationService(
	tracer trace.Tracer,
	predictions PredictionStore,
	rates DatedRateSource,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *EvaluationService {
	return &EvaluationService{
		tracer:      tracer,
		predictions: predictions,
		rates:       rates,
		logger:      logger.With().Str("component", "evaluation-service").Logger(),
		metrics:     m,
		now:         time.Now,
	}
}

// ResolveOutcomes fetches the realized rate for each due prediction and
// stores whether the predicted direction held. Predictions whose rate cannot
// be fetched stay unresolved for the next run.
func (s *EvaluationService) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.resolve-outcomes")
	defer span.End()

	if limit <= 0 {
		limit = defaultResolveBatch
	}
	now := s.now().UTC()
	due, err := s.predictions.ListUnresolvedDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		actual, err := s.rates.RateOn(ctx, p.Base, p.Target, p.TargetDate)
		if err != nil {
			s.logger.Warn().Err(err).Int64("prediction_id", p.ID).Msg("actual rate unavailable")
			continue
		}
		correct := p.PredictedDirection == domain.DirectionOf(p.PredictedRate, actual)
		if err := s.predictions.Resolve(ctx, p.ID, actual, correct, now); err != nil {
			return resolved, err
		}
		if s.metrics != nil {
			s.metrics.ResolvedPrediction.WithLabelValues(outcomeLabel(correct)).Inc()
		}
		resolved++
	}
	span.SetAttributes(attribute.Int("fx.due", len(due)), attribute.Int("fx.resolved", resolved))
	return resolved, nil
}

// Evaluate scores predictions resolved within the last days. A non-positive
// days evaluates every resolved prediction.
func (s *EvaluationService) Evaluate(ctx context.Context, days int) (*domain.BacktestReport, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.evaluate")
	defer span.End()

	var since time.Time
	if days > 0 {
		since = s.now().UTC().AddDate(0, 0, -days)
	}
	resolved, err := s.predictions.ListResolvedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	records := make([]domain.BacktestRecord, 0, len(resolved))
	for _, p := range resolved {
		if p.ActualRate == nil || p.WasCorrect == nil {
			continue
		}
		records = append(records, domain.BacktestRecord{
			PredictionDate:     p.PredictedAt.UTC().Truncate(24 * time.Hour),
			PredictedRate:      p.PredictedRate,
			ActualRate:         *p.ActualRate,
			PredictedDirection: p.PredictedDirection,
			ActualDirection:    domain.DirectionOf(p.PredictedRate, *p.ActualRate),
			WasCorrect:         *p.WasCorrect,
			Confidence:         p.Confidence,
		})
	}
	return &domain.BacktestReport{Records: records, Metrics: backtest.CalcMetrics(records)}, nil
}

func outcomeLabel(correct bool) string {
	if correct {
		return "correct"
	}
	return "wrong"
}
