package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type OutcomeResolver interface {
	ResolveOutcomes(ctx context.Context, limit int) (int, error)
}

// PredictionResolverJob periodically scores logged predictions whose target
// date has passed.
type PredictionResolverJob struct {
	tracer       trace.Tracer
	service      OutcomeResolver
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewPredictionResolverJob(tracer trace.Tracer, service OutcomeResolver, pollInterval time.Duration, batchSize int, logger zerolog.Logger) *PredictionResolverJob {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &PredictionResolverJob{
		tracer:       tracer,
		service:      service,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger.With().Str("job", "prediction-resolver").Logger(),
	}
}

func (j *PredictionResolverJob) Start(ctx context.Context) {
	if j.service == nil {
		j.logger.Info().Msg("prediction resolver disabled: no service")
		<-ctx.Done()
		return
	}
	pollLoop(ctx, j.pollInterval, j.runOnce)
}

func (j *PredictionResolverJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "prediction-resolver-job.run-once")
	defer span.End()

	resolved, err := j.service.ResolveOutcomes(ctx, j.batchSize)
	if err != nil {
		j.logger.Error().Err(err).Msg("prediction resolver error")
		return
	}
	if resolved > 0 {
		j.logger.Info().Int("resolved", resolved).Msg("prediction outcomes updated")
	}
}
