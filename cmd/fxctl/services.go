package main

import (
	"context"
	"errors"
	"time"

	"fx-advisor/internal/cache"
	"fx-advisor/internal/config"
	"fx-advisor/internal/db"
	"fx-advisor/internal/domain"
	"fx-advisor/internal/provider"
	"fx-advisor/internal/repository"
	"fx-advisor/internal/service"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var errNoPredictionLog = errors.New("evaluation needs DATABASE_URL")

type advisor interface {
	Analyze(ctx context.Context, base, target string) (*domain.Analysis, error)
	Backtest(ctx context.Context, base, target string, days, interval int) (*domain.BacktestReport, error)
}

type evaluator interface {
	Evaluate(ctx context.Context, days int) (*domain.BacktestReport, error)
}

type services struct {
	advice     advisor
	evaluation evaluator
}

type serviceFactory func(ctx context.Context) (*services, func(), error)

// buildServices wires the same stack as the server without jobs or HTTP.
// Redis and Postgres are used when reachable.
func buildServices(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*services, func(), error) {
	tracer := trace.NewNoopTracerProvider().Tracer("fxctl")
	var closers []func()

	var rateCache service.RedisClient
	if client, err := cache.InitRedis(ctx, cfg.RedisURL); err == nil {
		rateCache = client
		closers = append(closers, func() { _ = client.Close() })
	} else {
		logger.Debug().Err(err).Msg("running without rate cache")
	}

	rates := service.NewRateService(tracer, provider.NewCurrencyAPIProvider(tracer, time.Duration(cfg.FXAPITimeoutSecs)*time.Second), rateCache, logger, nil)

	out := &services{}
	if pool, err := db.InitPostgres(ctx, cfg.DatabaseURL); err == nil {
		closers = append(closers, pool.Close)
		out.evaluation = service.NewEvaluationService(tracer, repository.NewPredictionRepository(pool, tracer), rates, logger, nil)
	} else {
		logger.Debug().Err(err).Msg("running without prediction log")
	}

	out.advice = service.NewAdviceService(tracer, rates, nil, logger, nil, service.AdviceConfig{
		HistoryDays:      cfg.FXHistoryDays,
		BacktestDays:     cfg.FXBacktestDays,
		BacktestInterval: cfg.FXBacktestInterval,
		Paths:            cfg.FXSimulations,
		HorizonDays:      cfg.FXHorizonDays,
		Workers:          cfg.FXWorkers,
		Amount:           cfg.FXAmount,
	})

	return out, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}
