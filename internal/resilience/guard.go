package resilience

import (
	"context"
	"time"
)

// Guard combines the breaker registry with a retry policy. One Guard is
// shared by all gathering steps.
type Guard struct {
	breakers *Breakers
	retry    RetryPolicy
}

// NewGuard builds a Guard.
func NewGuard(retry RetryPolicy, breaker BreakerConfig) *Guard {
	return &Guard{breakers: NewBreakers(breaker), retry: retry}
}

// NewGuardFromConfig builds a Guard from flat config values; zero values
// fall back to defaults.
func NewGuardFromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitter float64, failureThreshold, resetTimeoutSecs int) *Guard {
	retry := DefaultRetryPolicy()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		retry.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		retry.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		retry.Multiplier = multiplier
	}
	if jitter >= 0 {
		retry.Jitter = jitter
	}
	return NewGuard(retry, BreakerConfig{
		FailureThreshold: failureThreshold,
		Cooldown:         time.Duration(resetTimeoutSecs) * time.Second,
	})
}

// Breakers exposes the registry for status reporting.
func (g *Guard) Breakers() *Breakers {
	return g.breakers
}

// Call runs fn for provider behind its breaker, retrying transient failures.
// The retries of one call count as a single breaker outcome. A nil Guard
// calls fn directly.
func Call[T any](ctx context.Context, g *Guard, provider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if g == nil {
		return fn(ctx)
	}
	var zero T
	b := g.breakers.Get(provider)
	if err := b.Allow(); err != nil {
		return zero, err
	}
	val, err := Retry(ctx, g.retry, provider+"."+op, fn)
	b.Record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}
