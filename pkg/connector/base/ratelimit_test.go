package base

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/junctionhq/junction/pkg/config"
)

func TestRateLimiterExhaustsWindow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{MaxRequests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "request %d should be permitted", i)
	}
	assert.False(t, rl.Allow(), "request beyond the window maximum must be denied")
	assert.Equal(t, 0, rl.Remaining())
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(config.RateLimitConfig{MaxRequests: 2, Window: time.Second})
	rl.now = func() time.Time { return now }
	rl.windowStart = now

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// Advance the wall clock past the window; the next check resets.
	now = now.Add(time.Second + time.Millisecond)
	assert.True(t, rl.Allow())
	assert.Equal(t, 1, rl.Remaining())
}

func TestRateLimiterReset(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{MaxRequests: 1, Window: time.Minute})
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	rl.Reset()
	assert.True(t, rl.Allow())
}
