package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	currencyAPIPrimaryURL  = "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@{date}/{version}/currencies/{base}.json"
	currencyAPIFallbackURL = "https://{date}.currency-api.pages.dev/{version}/currencies/{base}.json"
	currencyAPIVersion     = "v1"

	// LatestDate selects the most recent published rate.
	LatestDate = "latest"
)

var ErrRateNotFound = errors.New("rate not found")

// CurrencyAPIProvider reads daily exchange rates from the free currency API,
// trying the jsDelivr mirror first and the pages.dev mirror second.
type CurrencyAPIProvider struct {
	client      *http.Client
	primaryURL  string
	fallbackURL string
	tracer      trace.Tracer
	limiter     *HostLimiter
}

func NewCurrencyAPIProvider(tracer trace.Tracer, timeout time.Duration) *CurrencyAPIProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CurrencyAPIProvider{
		client:      &http.Client{Timeout: timeout},
		primaryURL:  currencyAPIPrimaryURL,
		fallbackURL: currencyAPIFallbackURL,
		tracer:      tracer,
		limiter:     NewHostLimiter(20, 250*time.Millisecond),
	}
}

// RateOn returns how many units of target one unit of base buys on date
// (YYYY-MM-DD or LatestDate).
func (p *CurrencyAPIProvider) RateOn(ctx context.Context, base, target, date string) (float64, error) {
	ctx, span := p.tracer.Start(ctx, "currency-api.rate-on")
	defer span.End()

	base = strings.ToLower(base)
	target = strings.ToLower(target)

	rate, err := p.fetch(ctx, expandURL(p.primaryURL, date, base), base, target)
	if err == nil {
		return rate, nil
	}
	rate, fallbackErr := p.fetch(ctx, expandURL(p.fallbackURL, date, base), base, target)
	if fallbackErr != nil {
		return 0, fmt.Errorf("fetch %s/%s on %s: primary: %v; fallback: %w", base, target, date, err, fallbackErr)
	}
	return rate, nil
}

func (p *CurrencyAPIProvider) fetch(ctx context.Context, url, base, target string) (float64, error) {
	body, err := p.doRequest(ctx, url)
	if err != nil {
		return 0, err
	}

	// Response shape: {"date": "2026-01-01", "inr": {"aud": 0.0179, ...}}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("parse rates: %w", err)
	}
	table, ok := raw[base]
	if !ok {
		return 0, fmt.Errorf("%w: base %s", ErrRateNotFound, base)
	}
	var rates map[string]float64
	if err := json.Unmarshal(table, &rates); err != nil {
		return 0, fmt.Errorf("parse %s rates: %w", base, err)
	}
	rate, ok := rates[target]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrRateNotFound, base, target)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("non-positive rate %v for %s/%s", rate, base, target)
	}
	return rate, nil
}

func (p *CurrencyAPIProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx, url); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("currency API error %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func expandURL(tmpl, date, base string) string {
	return strings.NewReplacer(
		"{date}", date,
		"{version}", currencyAPIVersion,
		"{base}", base,
	).Replace(tmpl)
}
