// Package resilience protects outbound messaging-vendor calls: exponential
// backoff for transient failures and a circuit breaker that stops hammering
// the vendor API while it is down. Lead-store lookups never route through
// here; a failed lookup is treated as a miss by the caller.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig controls the backoff schedule for DoVal.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// DoVal runs fn up to cfg.MaxAttempts times, sleeping between attempts.
// Only transient errors are retried; anything else is returned immediately,
// as is the last error once attempts are exhausted. Context cancellation
// cuts the backoff sleep short.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if !IsTransient(err) || attempt == attempts-1 {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.backoff(attempt)):
		}
	}
	return zero, err
}

func (cfg RetryConfig) backoff(attempt int) time.Duration {
	d := cfg.InitialBackoff
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	mult := cfg.Multiplier
	if mult <= 1 {
		mult = 2.0
	}
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if cfg.MaxBackoff > 0 && d >= cfg.MaxBackoff {
			d = cfg.MaxBackoff
			break
		}
	}
	if cfg.JitterFraction > 0 {
		// Spread retries out so a burst of failed sends does not hit a
		// rate-limited vendor in lockstep.
		d += time.Duration(rand.Float64() * cfg.JitterFraction * float64(d))
	}
	return d
}
