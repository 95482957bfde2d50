package base

import (
	"math"
	"math/rand"
	"time"

	"github.com/junctionhq/junction/pkg/config"
)

// BackoffPolicy computes exponential retry delays with multiplicative
// jitter. Jitter is additive only: the base delay is never reduced, so the
// worst case stays bounded while concurrent retriers desynchronize.
type BackoffPolicy struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitterFactor float64

	rand func() float64
}

// NewBackoffPolicy creates a backoff policy from retry configuration.
func NewBackoffPolicy(cfg config.RetryConfig) *BackoffPolicy {
	return &BackoffPolicy{
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
		multiplier:   cfg.BackoffMultiplier,
		jitterFactor: cfg.JitterFactor,
		rand:         rand.Float64,
	}
}

// DelayFor returns the delay for retry attempt n (1-indexed):
// min(initial * multiplier^(n-1), max) plus delay * jitterFactor * random.
func (bp *BackoffPolicy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(bp.initialDelay) * math.Pow(bp.multiplier, float64(attempt-1))
	if delay > float64(bp.maxDelay) {
		delay = float64(bp.maxDelay)
	}

	if bp.jitterFactor > 0 {
		delay += delay * bp.jitterFactor * bp.rand()
	}

	return time.Duration(math.Floor(delay))
}
