// Package ratelimiter throttles outbound WebDAV requests with a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate for client-side request pacing.
//
// A nil *RateLimiter is valid and never blocks.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained requests
// with bursts of up to burst requests.
//
// Special cases:
//   - requestsPerSecond <= 0: returns nil (no throttling)
//   - burst <= 0: burst defaults to one request
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request may be sent or ctx is done.
//
// Returns the context error if ctx is cancelled before a token is available.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may be sent right now, consuming a token
// if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Tokens returns the number of requests currently available without waiting.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return float64(rate.Inf)
	}
	return r.limiter.Tokens()
}
