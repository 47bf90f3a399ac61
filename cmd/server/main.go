package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-advisor/internal/cache"
	"fx-advisor/internal/config"
	"fx-advisor/internal/db"
	"fx-advisor/internal/handler"
	"fx-advisor/internal/job"
	"fx-advisor/internal/logging"
	"fx-advisor/internal/metrics"
	"fx-advisor/internal/provider"
	"fx-advisor/internal/repository"
	"fx-advisor/internal/service"
	"fx-advisor/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	newLoggerFunc       = logging.New
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	newRateProviderFunc = func(tracer trace.Tracer, timeout time.Duration) service.RateProvider {
		return provider.NewCurrencyAPIProvider(tracer, timeout)
	}
	startJobFunc           = func(start func(context.Context), ctx context.Context) { go start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	exitFunc               = os.Exit
)

func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Warn().Err(err).Msg("falling back to default logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{Enabled: cfg.TracingEnabled, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize tracer")
		exitFunc(1)
		return
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Redis and Postgres are optional; the service degrades to uncached
	// rates and no prediction log.
	var rateCache service.RedisClient
	var redisClient *redis.Client
	if redisClient, err = initRedisFunc(ctx, cfg.RedisURL); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, rate cache disabled")
	} else {
		rateCache = redisClient
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if pool, err = initPostgresFunc(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn().Err(err).Msg("postgres unavailable, prediction log disabled")
	} else {
		defer pool.Close()
	}

	rateProvider := newRateProviderFunc(tracer, time.Duration(cfg.FXAPITimeoutSecs)*time.Second)
	rateService := service.NewRateService(tracer, rateProvider, rateCache, logger, m)

	var predictionLog service.PredictionLogger
	var evaluation *service.EvaluationService
	if pool != nil {
		predictions := repository.NewPredictionRepository(pool, tracer)
		predictionLog = predictions
		evaluation = service.NewEvaluationService(tracer, predictions, rateService, logger, m)
	}

	advice := service.NewAdviceService(tracer, rateService, predictionLog, logger, m, service.AdviceConfig{
		HistoryDays:      cfg.FXHistoryDays,
		BacktestDays:     cfg.FXBacktestDays,
		BacktestInterval: cfg.FXBacktestInterval,
		Paths:            cfg.FXSimulations,
		HorizonDays:      cfg.FXHorizonDays,
		Workers:          cfg.FXWorkers,
		Amount:           cfg.FXAmount,
	})

	poller := job.NewRatePoller(tracer, rateService, []job.Pair{{Base: cfg.FXBase, Target: cfg.FXTarget}}, cfg.FXPollSecs, logger)
	startJobFunc(poller.Start, ctx)
	if evaluation != nil {
		resolver := job.NewPredictionResolverJob(tracer, evaluation, time.Duration(cfg.FXResolvePollSecs)*time.Second, 0, logger)
		startJobFunc(resolver.Start, ctx)
	}

	h := handler.New(tracer, advice, logger)
	if evaluation != nil {
		h.SetEvaluator(evaluation)
	}

	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware(tracing.ServiceName))
	h.RegisterRoutes(r, cfg.APIKey, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("listen failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-waitFor(quit):
	}
	logger.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exiting")
}

func waitFor(quit <-chan os.Signal) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		waitForSignalFunc(quit)
		close(done)
	}()
	return done
}
