package handler

import (
	"context"

	"fx-advisor/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Advisor interface {
	Analyze(ctx context.Context, base, target string) (*domain.Analysis, error)
	Backtest(ctx context.Context, base, target string, days, interval int) (*domain.BacktestReport, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, days int) (*domain.BacktestReport, error)
}

type Handler struct {
	tracer    trace.Tracer
	advisor   Advisor
	evaluator Evaluator
	logger    zerolog.Logger
}

func New(tracer trace.Tracer, advisor Advisor, logger zerolog.Logger) *Handler {
	return &Handler{
		tracer:  tracer,
		advisor: advisor,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// SetEvaluator enables the evaluation endpoint. It stays unavailable when no
// prediction log is configured.
func (h *Handler) SetEvaluator(e Evaluator) {
	h.evaluator = e
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string, gatherer prometheus.Gatherer) {
	r.GET("/health", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/fx/:base/:target/decision", h.Decision)
	api.GET("/fx/:base/:target/backtest", h.Backtest)
	api.GET("/evaluation", h.Evaluation)
}
