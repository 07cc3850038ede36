package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond float64
		burst             int
		wantNil           bool
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "fractional rate", requestsPerSecond: 0.5, burst: 1},
		{name: "zero burst", requestsPerSecond: 10, burst: 0},
		{name: "disabled", requestsPerSecond: 0, burst: 10, wantNil: true},
		{name: "negative rate", requestsPerSecond: -1, burst: 10, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if tt.wantNil {
				assert.Nil(t, limiter)
				return
			}
			require.NotNil(t, limiter)
			assert.GreaterOrEqual(t, limiter.limiter.Burst(), 1)
		})
	}
}

func TestNilLimiterNeverBlocks(t *testing.T) {
	var limiter *RateLimiter

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Wait(ctx))
		require.True(t, limiter.Allow())
	}
}

func TestAllow_ExhaustsBurst(t *testing.T) {
	limiter := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow(), "request %d should fit in burst", i)
	}
	assert.False(t, limiter.Allow(), "burst exhausted")
}

func TestWait_RespectsCancellation(t *testing.T) {
	limiter := New(0.1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.Error(t, err)
}

func TestTokens(t *testing.T) {
	limiter := New(10, 5)
	assert.InDelta(t, 5.0, limiter.Tokens(), 0.5)

	limiter.Allow()
	assert.InDelta(t, 4.0, limiter.Tokens(), 0.5)
}
