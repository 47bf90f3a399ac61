package provider

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"fx-advisor/internal/domain"

	"golang.org/x/time/rate"
)

// HostLimiter paces outbound requests per mirror, so a slow or throttled mirror
// does not consume the budget of the other. Mirrors that put the date in the
// leading host label share one bucket across dates.
type HostLimiter struct {
	mu       sync.Mutex
	every    time.Duration
	burst    int
	limiters map[string]*rate.Limiter
}

// NewHostLimiter allows burst immediate requests per host, then one every interval.
func NewHostLimiter(burst int, every time.Duration) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the mirror serving rawURL may be called or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return h.limiter(mirrorKey(rawURL)).Wait(ctx)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(h.every), h.burst)
		h.limiters[host] = l
	}
	return l
}

// mirrorKey is the URL host with a leading date label removed, so
// 2026-03-06.currency-api.pages.dev and latest.currency-api.pages.dev map to
// currency-api.pages.dev.
func mirrorKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := u.Hostname()
	label, rest, ok := strings.Cut(host, ".")
	if ok && strings.Contains(rest, ".") && isDateLabel(label) {
		return rest
	}
	return host
}

func isDateLabel(label string) bool {
	if label == LatestDate {
		return true
	}
	_, err := time.Parse(domain.DateLayout, label)
	return err == nil
}
