package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fx-advisor/internal/domain"
	"fx-advisor/internal/metrics"
	"fx-advisor/internal/provider"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const latestRateTTL = 90 * time.Second

// MaxHistoryDays caps a single historical fetch. Each day costs one upstream
// request, so this bounds the work a caller can ask for.
const MaxHistoryDays = 3650

type RateProvider interface {
	RateOn(ctx context.Context, base, target, date string) (float64, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RateService serves spot and historical rates through a Redis cache.
// Dated rates never change once published and are cached without expiry.
type RateService struct {
	tracer   trace.Tracer
	provider RateProvider
	redis    RedisClient
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRateService(
	tracer trace.Tracer,
	provider RateProvider,
	redisClient RedisClient,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *RateService {
	return &RateService{
		tracer:   tracer,
		provider: provider,
		redis:    redisClient,
		logger:   logger.With().Str("component", "rate-service").Logger(),
		metrics:  m,
		now:      time.Now,
	}
}

// CurrentRate returns the latest published rate, cached briefly.
func (s *RateService) CurrentRate(ctx context.Context, base, target string) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.current-rate")
	defer span.End()

	return s.cachedRate(ctx, base, target, provider.LatestDate, latestRateTTL)
}

// RateOn returns the rate published for the calendar day of date.
func (s *RateService) RateOn(ctx context.Context, base, target string, date time.Time) (float64, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.rate-on")
	defer span.End()

	return s.cachedRate(ctx, base, target, date.UTC().Format(domain.DateLayout), 0)
}

// HistoricalSeries returns up to days daily observations ending yesterday.
// Days that cannot be retrieved are skipped, so the series may have gaps.
func (s *RateService) HistoricalSeries(ctx context.Context, base, target string, days int) (domain.RateSeries, error) {
	ctx, span := s.tracer.Start(ctx, "rate-service.historical-series")
	defer span.End()
	span.SetAttributes(attribute.String("fx.pair", pair(base, target)), attribute.Int("fx.days", days))

	if days <= 0 {
		return nil, &domain.InvalidInputError{Field: "days", Reason: "must be positive"}
	}
	if days > MaxHistoryDays {
		return nil, &domain.InvalidInputError{Field: "days", Reason: fmt.Sprintf("must not exceed %d", MaxHistoryDays)}
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	series := make(domain.RateSeries, 0, days)
	for i := days; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		date := today.AddDate(0, 0, -i)
		rate, err := s.RateOn(ctx, base, target, date)
		if err != nil {
			s.logger.Warn().Err(err).Str("date", date.Format(domain.DateLayout)).Str("pair", pair(base, target)).Msg("skipping date after fetch error")
			if s.metrics != nil {
				s.metrics.RateFetchFailures.WithLabelValues(pair(base, target)).Inc()
			}
			continue
		}
		series = append(series, domain.RateObservation{Date: date, Rate: rate})
	}
	return series, nil
}

// RefreshLatest bypasses the cache and stores a fresh spot rate.
func (s *RateService) RefreshLatest(ctx context.Context, base, target string) error {
	ctx, span := s.tracer.Start(ctx, "rate-service.refresh-latest")
	defer span.End()

	rate, err := s.provider.RateOn(ctx, base, target, provider.LatestDate)
	if err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.setRateCache(ctx, cacheKey(base, target, provider.LatestDate), rate, latestRateTTL); err != nil {
			s.logger.Error().Err(err).Msg("redis cache write error")
		}
	}
	s.logger.Info().Str("pair", pair(base, target)).Float64("rate", rate).Msg("refreshed latest rate")
	return nil
}

func (s *RateService) cachedRate(ctx context.Context, base, target, date string, ttl time.Duration) (float64, error) {
	key := cacheKey(base, target, date)
	if s.redis != nil {
		rate, ok, err := s.getRateCache(ctx, key)
		if err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("redis cache read error")
		}
		if ok {
			return rate, nil
		}
	}

	rate, err := s.provider.RateOn(ctx, base, target, date)
	if err != nil {
		return 0, err
	}
	if s.redis != nil {
		if err := s.setRateCache(ctx, key, rate, ttl); err != nil {
			s.logger.Error().Err(err).Str("key", key).Msg("redis cache write error")
		}
	}
	return rate, nil
}

func (s *RateService) setRateCache(ctx context.Context, key string, rate float64, ttl time.Duration) error {
	return s.redis.Set(ctx, key, strconv.FormatFloat(rate, 'g', -1, 64), ttl).Err()
}

func (s *RateService) getRateCache(ctx context.Context, key string) (float64, bool, error) {
	raw, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return 0, false, fmt.Errorf("corrupt cached rate %q under %s", raw, key)
	}
	return rate, true, nil
}

func cacheKey(base, target, date string) string {
	return "fx:rate:" + date + ":" + strings.ToLower(base) + ":" + strings.ToLower(target)
}

func pair(base, target string) string {
	return strings.ToLower(base) + "/" + strings.ToLower(target)
}
