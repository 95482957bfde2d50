package base

import (
	"sync"
	"time"

	"github.com/junctionhq/junction/pkg/config"
)

// RateLimiter is a fixed-window request counter. The window resets by
// wall-clock comparison, not a timer: the first permit check after the
// window elapses advances windowStart and zeroes the count.
//
// Each connector instance owns one limiter. The mutex makes Allow safe for
// concurrent callers even though the framework drives each instance from a
// single logical caller.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	count       int
	windowStart time.Time

	now func() time.Time
}

// NewRateLimiter creates a fixed-window rate limiter from the given config.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: cfg.MaxRequests,
		window:      cfg.Window,
		now:         time.Now,
	}
	rl.windowStart = rl.now()
	return rl
}

// Allow consumes one token if available. A request is permitted iff the
// current count is below the window maximum; permitting increments the
// count.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refresh()

	if rl.count < rl.maxRequests {
		rl.count++
		return true
	}
	return false
}

// Remaining returns the number of permits left in the current window.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refresh()
	return rl.maxRequests - rl.count
}

// Reset clears the counter and restarts the window at now.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.count = 0
	rl.windowStart = rl.now()
}

// refresh advances the window if it has elapsed. Caller must hold the lock.
func (rl *RateLimiter) refresh() {
	now := rl.now()
	if now.Sub(rl.windowStart) >= rl.window {
		rl.count = 0
		rl.windowStart = now
	}
}
