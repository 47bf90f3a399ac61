package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestAdviceService_AnalyzeFlatSeries(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{series: flatSeries(40, 0.5), current: 0.5}
	logger := &stubPredictionLogger{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewAdviceService(testTracer, source, logger, zerolog.Nop(), m, AdviceConfig{Amount: 1000, Paths: 200})
	svc.now = func() time.Time { return fixedNow }

	got, err := svc.Analyze(context.Background(), "INR", "AUD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Base != "inr" || got.Target != "aud" {
		t.Fatalf("expected normalized pair, got %s/%s", got.Base, got.Target)
	}
	if got.Result.ProbabilityUp != 0 || got.Result.Decision != domain.DecisionSendNow {
		t.Fatalf("unexpected result: %+v", got.Result)
	}
	if got.Result.RiskBandConfidence != 1 || got.Result.RiskLabel != domain.RiskLowVolatility {
		t.Fatalf("unexpected risk: %+v", got.Result)
	}
	if got.Result.ConfidenceScore != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", got.Result.ConfidenceScore)
	}
	want := domain.Scenario{Amount: "1000.00", ValueToday: "500.00", ValueExpected: "500.00", Difference: "0.00"}
	if got.Scenario != want {
		t.Fatalf("expected scenario %+v, got %+v", want, got.Scenario)
	}
	if got.Observations != 40 || got.HorizonDays != 7 {
		t.Fatalf("unexpected metadata: %+v", got)
	}

	if len(logger.inserted) != 1 {
		t.Fatalf("expected one recorded prediction, got %d", len(logger.inserted))
	}
	p := logger.inserted[0]
	if p.PredictedDirection != domain.DirectionDown || p.PredictedRate != 0.5 {
		t.Fatalf("unexpected prediction: %+v", p)
	}
	if !p.TargetDate.Equal(time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected target date %s", p.TargetDate)
	}
	if v := testutil.ToFloat64(m.Decisions.WithLabelValues("inr/aud", "send_now")); v != 1 {
		t.Fatalf("expected decision counter 1, got %v", v)
	}
}

func TestAdviceService_AnalyzeInsufficientHistory(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{series: flatSeries(12, 0.5), current: 0.5}
	svc := NewAdviceService(testTracer, source, nil, zerolog.Nop(), nil, AdviceConfig{})

	_, err := svc.Analyze(context.Background(), "inr", "aud")
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestAdviceService_AnalyzeRejectsBadPair(t *testing.T) {
	t.Parallel()

	svc := NewAdviceService(testTracer, &stubSeriesSource{}, nil, zerolog.Nop(), nil, AdviceConfig{})
	for _, tc := range [][2]string{{"inr", "inr"}, {"rupee", "aud"}, {"inr", "a1d"}} {
		if _, err := svc.Analyze(context.Background(), tc[0], tc[1]); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%v: expected invalid input, got %v", tc, err)
		}
	}
}

func TestAdviceService_AnalyzeSurvivesPredictionLogFailure(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{series: flatSeries(40, 0.5), current: 0.5}
	logger := &stubPredictionLogger{err: errors.New("db down")}
	svc := NewAdviceService(testTracer, source, logger, zerolog.Nop(), nil, AdviceConfig{Paths: 10})

	if _, err := svc.Analyze(context.Background(), "inr", "aud"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdviceService_AnalyzeProviderError(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{err: errors.New("upstream")}
	svc := NewAdviceService(testTracer, source, nil, zerolog.Nop(), nil, AdviceConfig{})

	if _, err := svc.Analyze(context.Background(), "inr", "aud"); err == nil {
		t.Fatal("expected error")
	}
}

func TestAdviceService_BacktestFlatSeries(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{series: flatSeries(50, 0.5)}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewAdviceService(testTracer, source, nil, zerolog.Nop(), m, AdviceConfig{Paths: 50, Workers: 2})

	report, err := svc.Backtest(context.Background(), "inr", "aud", 50, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Metrics.Total != 2 || report.Metrics.Correct != 2 {
		t.Fatalf("unexpected metrics: %+v", report.Metrics)
	}
	if source.lastDays != 50 {
		t.Fatalf("expected 50 days requested, got %d", source.lastDays)
	}
	if v := testutil.ToFloat64(m.BacktestAccuracy.WithLabelValues("inr/aud")); v != 1 {
		t.Fatalf("expected accuracy gauge 1, got %v", v)
	}
}

func TestAdviceService_BacktestDefaultsAndShortSeries(t *testing.T) {
	t.Parallel()

	source := &stubSeriesSource{series: flatSeries(20, 0.5)}
	svc := NewAdviceService(testTracer, source, nil, zerolog.Nop(), nil, AdviceConfig{BacktestDays: 90})

	report, err := svc.Backtest(context.Background(), "inr", "aud", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.lastDays != 90 {
		t.Fatalf("expected default 90 days, got %d", source.lastDays)
	}
	if len(report.Records) != 0 || report.Metrics.Total != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestBuildScenario(t *testing.T) {
	got := BuildScenario(1000, 0.01795, 0.018)
	want := domain.Scenario{Amount: "1000.00", ValueToday: "17.95", ValueExpected: "18.00", Difference: "0.05"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

type stubSeriesSource struct {
	series   domain.RateSeries
	current  float64
	err      error
	lastDays int
}

func (s *stubSeriesSource) CurrentRate(ctx context.Context, base, target string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.current, nil
}

func (s *stubSeriesSource) HistoricalSeries(ctx context.Context, base, target string, days int) (domain.RateSeries, error) {
	s.lastDays = days
	if s.err != nil {
		return nil, s.err
	}
	if days < len(s.series) {
		return s.series[len(s.series)-days:], nil
	}
	return s.series, nil
}

type stubPredictionLogger struct {
	inserted []domain.Prediction
	err      error
}

func (s *stubPredictionLogger) Insert(ctx context.Context, p domain.Prediction) (*domain.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	p.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, p)
	return &p, nil
}

func flatSeries(n int, rate float64) domain.RateSeries {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.RateSeries, n)
	for i := range out {
		out[i] = domain.RateObservation{Date: start.AddDate(0, 0, i), Rate: rate}
	}
	return out
}
