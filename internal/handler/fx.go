package handler

import (
	"context"
	"errors"
	"net/http"

	"fx-advisor/internal/domain"

	"github.com/gin-gonic/gin"
)

// Decision runs the live pipeline for the pair in the path.
func (h *Handler) Decision(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.decision")
	defer span.End()

	analysis, err := h.advisor.Analyze(ctx, c.Param("base"), c.Param("target"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

type backtestQuery struct {
	Days     int `form:"days" binding:"min=0,max=3650"`
	Interval int `form:"interval" binding:"min=0,max=3650"`
}

type evaluationQuery struct {
	Days    int  `form:"days" binding:"min=0,max=3650"`
	Verbose bool `form:"verbose"`
}

// Backtest replays the ensemble over recent history. Zero or missing days and
// interval fall back to the configured defaults.
func (h *Handler) Backtest(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.backtest")
	defer span.End()

	var q backtestQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.advisor.Backtest(ctx, c.Param("base"), c.Param("target"), q.Days, q.Interval)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Evaluation scores resolved live predictions. Records are included only
// when verbose=true.
func (h *Handler) Evaluation(c *gin.Context) {
	if h.evaluator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction log unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.evaluation")
	defer span.End()

	var q evaluationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.evaluator.Evaluate(ctx, q.Days)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !q.Verbose {
		c.JSON(http.StatusOK, gin.H{"metrics": report.Metrics})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure"})
	}
}
