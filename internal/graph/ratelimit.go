package graph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Graph allows roughly 10,000 requests per 10 minutes per app and mailbox.
const (
	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 15
)

// RateLimiter is a token bucket that also honours server-side throttling.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing rps sustained requests with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until a request may be sent, including any pending throttle backoff.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// Backoff holds every request until d has passed. Called on 429 responses.
func (r *RateLimiter) Backoff(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if at := time.Now().Add(d); at.After(r.retryAt) {
		r.retryAt = at
	}
}
