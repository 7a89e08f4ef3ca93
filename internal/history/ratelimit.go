package history

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter spaces requests to the history API and honours the server's
// remaining-quota headers
type RateLimiter struct {
	mu sync.Mutex

	// Minimum interval between requests
	minInterval time.Duration
	lastRequest time.Time

	// Server-reported quota; remaining < 0 means unknown
	remaining int
	resetsAt  time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond requests.
// A non-positive rate disables client-side spacing.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	r := &RateLimiter{remaining: -1}
	if requestsPerSecond > 0 {
		r.minInterval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return r
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Quota exhausted until the reported reset
	if r.remaining == 0 && time.Now().Before(r.resetsAt) {
		if err := r.sleep(ctx, time.Until(r.resetsAt)); err != nil {
			return err
		}
		r.remaining = -1
	}

	// Enforce minimum interval between requests
	if elapsed := time.Since(r.lastRequest); elapsed < r.minInterval {
		if err := r.sleep(ctx, r.minInterval-elapsed); err != nil {
			return err
		}
	}

	if r.remaining > 0 {
		r.remaining--
	}
	r.lastRequest = time.Now()
	return nil
}

// sleep releases the lock while waiting. Called with r.mu held.
func (r *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Unlock()
	defer r.mu.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateFromHeaders updates quota state from X-RateLimit-Remaining and
// X-RateLimit-Reset (unix seconds) response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			r.remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			r.resetsAt = time.Unix(secs, 0)
		}
	}
}

// Remaining returns the last server-reported quota, or -1 if unknown
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
