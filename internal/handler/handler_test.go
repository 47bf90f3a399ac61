package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("handler-test")

func newTestRouter(advisor Advisor, evaluator Evaluator, apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(testTracer, advisor, zerolog.Nop())
	if evaluator != nil {
		h.SetEvaluator(evaluator)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Decisions.WithLabelValues("inr/aud", "wait").Inc()
	h.RegisterRoutes(r, apiKey, reg)
	return r
}

func serve(r *gin.Engine, target string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&stubAdvisor{}, nil, "")
	w := serve(r, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if body != "{\"status\":\"healthy\"}\n" && body != "{\"status\":\"healthy\"}" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&stubAdvisor{}, nil, "secret")
	w := serve(r, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "fx_decisions_total") {
		t.Fatalf("expected decisions counter in output")
	}
}

func TestDecision(t *testing.T) {
	advisor := &stubAdvisor{analysis: &domain.Analysis{
		Base:   "inr",
		Target: "aud",
		Result: domain.DecisionResult{ProbabilityUp: 0.7, Decision: domain.DecisionWait},
	}}
	r := newTestRouter(advisor, nil, "")

	w := serve(r, "/api/fx/INR/AUD/decision", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if advisor.base != "INR" || advisor.target != "AUD" {
		t.Fatalf("unexpected pair forwarded: %s/%s", advisor.base, advisor.target)
	}
	var body domain.Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Result.Decision != domain.DecisionWait {
		t.Fatalf("unexpected decision %s", body.Result.Decision)
	}
}

func TestDecisionErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&domain.InvalidInputError{Field: "base", Reason: "bad"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", &domain.InsufficientDataError{Need: 30, Have: 3}), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("provider down"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		r := newTestRouter(&stubAdvisor{err: tc.err}, nil, "")
		w := serve(r, "/api/fx/inr/aud/decision", nil)
		if w.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestBacktestQueryParams(t *testing.T) {
	advisor := &stubAdvisor{report: &domain.BacktestReport{Metrics: domain.AccuracyMetrics{Total: 3, Correct: 2}}}
	r := newTestRouter(advisor, nil, "")

	w := serve(r, "/api/fx/inr/aud/backtest?days=90&interval=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if advisor.days != 90 || advisor.interval != 3 {
		t.Fatalf("expected days 90 interval 3, got %d %d", advisor.days, advisor.interval)
	}

	w = serve(r, "/api/fx/inr/aud/backtest", nil)
	if w.Code != http.StatusOK || advisor.days != 0 || advisor.interval != 0 {
		t.Fatalf("expected defaults forwarded as zero, got %d %d (%d)", advisor.days, advisor.interval, w.Code)
	}

	w = serve(r, "/api/fx/inr/aud/backtest?interval=-1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative interval, got %d", w.Code)
	}
}

func TestHistoryWindowUpperBound(t *testing.T) {
	advisor := &stubAdvisor{report: &domain.BacktestReport{}}
	eval := &stubEvaluator{report: &domain.BacktestReport{}}
	r := newTestRouter(advisor, eval, "")

	for _, path := range []string{
		"/api/fx/inr/aud/backtest?days=3651",
		"/api/fx/inr/aud/backtest?days=1099511627776",
		"/api/fx/inr/aud/backtest?interval=100000",
		"/api/evaluation?days=3651",
	} {
		w := serve(r, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
	if advisor.days != 0 || eval.days != 0 {
		t.Fatalf("oversized windows must not reach services, got %d %d", advisor.days, eval.days)
	}

	w := serve(r, "/api/fx/inr/aud/backtest?days=3650", nil)
	if w.Code != http.StatusOK || advisor.days != 3650 {
		t.Fatalf("expected largest window accepted, got %d (%d)", w.Code, advisor.days)
	}
}

func TestEvaluationUnavailableWithoutPredictionLog(t *testing.T) {
	r := newTestRouter(&stubAdvisor{}, nil, "")
	w := serve(r, "/api/evaluation", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestEvaluationVerbose(t *testing.T) {
	eval := &stubEvaluator{report: &domain.BacktestReport{
		Records: []domain.BacktestRecord{{PredictedRate: 0.018, ActualRate: 0.019, WasCorrect: true}},
		Metrics: domain.AccuracyMetrics{RollingAccuracy: 1, Total: 1, Correct: 1},
	}}
	r := newTestRouter(&stubAdvisor{}, eval, "")

	w := serve(r, "/api/evaluation?days=30", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if eval.days != 30 {
		t.Fatalf("expected 30 days, got %d", eval.days)
	}
	if strings.Contains(w.Body.String(), "records") {
		t.Fatalf("records must be omitted without verbose: %s", w.Body.String())
	}

	w = serve(r, "/api/evaluation?verbose=true", nil)
	var body domain.BacktestReport
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(body.Records) != 1 || body.Metrics.Correct != 1 {
		t.Fatalf("unexpected verbose payload: %+v", body)
	}

	w = serve(r, "/api/evaluation?verbose=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	r := newTestRouter(&stubAdvisor{analysis: &domain.Analysis{}}, nil, "secret")

	if w := serve(r, "/api/fx/inr/aud/decision", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := serve(r, "/api/fx/inr/aud/decision", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := serve(r, "/api/fx/inr/aud/decision", map[string]string{"X-API-Key": "secret"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := serve(r, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health must not require a key, got %d", w.Code)
	}
}

type stubAdvisor struct {
	analysis *domain.Analysis
	report   *domain.BacktestReport
	err      error

	base, target   string
	days, interval int
}

func (s *stubAdvisor) Analyze(ctx context.Context, base, target string) (*domain.Analysis, error) {
	s.base, s.target = base, target
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func (s *stubAdvisor) Backtest(ctx context.Context, base, target string, days, interval int) (*domain.BacktestReport, error) {
	s.base, s.target, s.days, s.interval = base, target, days, interval
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubEvaluator struct {
	report *domain.BacktestReport
	days   int
}

func (s *stubEvaluator) Evaluate(ctx context.Context, days int) (*domain.BacktestReport, error) {
	s.days = days
	return s.report, nil
}
