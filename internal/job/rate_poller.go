package job

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pair is a base/target currency pair in lower-case ISO codes.
type Pair struct {
	Base   string
	Target string
}

func (p Pair) String() string { return p.Base + "/" + p.Target }

type LatestRateRefresher interface {
	RefreshLatest(ctx context.Context, base, target string) error
}

// RatePoller keeps the cached spot rate of each configured pair warm.
type RatePoller struct {
	tracer       trace.Tracer
	rates        LatestRateRefresher
	pairs        []Pair
	pollInterval time.Duration
	logger       zerolog.Logger
}

func NewRatePoller(tracer trace.Tracer, rates LatestRateRefresher, pairs []Pair, pollIntervalSecs int, logger zerolog.Logger) *RatePoller {
	interval := time.Duration(pollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	return &RatePoller{
		tracer:       tracer,
		rates:        rates,
		pairs:        pairs,
		pollInterval: interval,
		logger:       logger.With().Str("job", "rate-poller").Logger(),
	}
}

// Start refreshes immediately and then on every tick. Blocks until ctx is cancelled.
func (p *RatePoller) Start(ctx context.Context) {
	p.logger.Info().Int("pairs", len(p.pairs)).Dur("interval", p.pollInterval).Msg("rate poller starting")
	pollLoop(ctx, p.pollInterval, p.refreshAll)
	p.logger.Info().Msg("rate poller stopped")
}

func (p *RatePoller) refreshAll(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "rate-poller.refresh-all")
	defer span.End()
	span.SetAttributes(attribute.Int("fx.pairs", len(p.pairs)))

	for _, pair := range p.pairs {
		if ctx.Err() != nil {
			return
		}
		if err := p.rates.RefreshLatest(ctx, pair.Base, pair.Target); err != nil {
			p.logger.Warn().Err(err).Str("pair", pair.String()).Msg("latest rate refresh failed")
		}
	}
}

// pollLoop runs fn immediately and then every interval until ctx is done.
func pollLoop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
