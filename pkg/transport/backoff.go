package transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls the retry behaviour for transient failures.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`

	// BaseDelay is the delay before the first retry; later retries double it.
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"gte=0"`

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay" validate:"gte=0"`

	// Jitter randomises each delay by +/- the given fraction (0..1).
	Jitter float64 `mapstructure:"jitter" yaml:"jitter" validate:"gte=0,lte=1"`
}

// DefaultRetryPolicy implements a conservative retry strategy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	p.Jitter = math.Max(0, math.Min(p.Jitter, 1))
	return p
}

// delay returns the backoff before retry number attempt (0-indexed).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.MaxDelay
	if scaled := float64(p.BaseDelay) * math.Pow(2, float64(max(attempt, 0))); scaled < float64(p.MaxDelay) {
		d = time.Duration(scaled)
	}
	if p.Jitter == 0 {
		return d
	}
	factor := 1 + (rand.Float64()*2-1)*p.Jitter
	return time.Duration(float64(d) * factor)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
