// Package backoff holds the retry policy applied to units of work: how many
// attempts a job gets and how long to wait between them. Strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry n (1-indexed).
	// Retry 1 follows the first failed attempt.
	Delay(retry int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay on each retry.
// Delay = min(Initial * 2^(retry-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(retry-1), capped at Max.
func (e *Exponential) Delay(retry int) time.Duration {
	return capped(e.Initial, e.Max, retry)
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter draws a random delay in [0, Exponential.Delay].
// Many jobs failing against the same dependency then spread their retries.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(retry-1), Max)].
func (e *ExponentialWithJitter) Delay(retry int) time.Duration {
	base := capped(e.Initial, e.Max, retry)
	return time.Duration(rand.Float64() * float64(base)) //nolint:gosec // jitter does not need crypto rand
}

func capped(initial, maxDelay time.Duration, retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := float64(initial) * math.Pow(2, float64(retry-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Policy
// ──────────────────────────────────────────────────

// DefaultMaxAttempts is the attempt budget of DefaultPolicy.
const DefaultMaxAttempts = 3

// Policy bounds retries of a unit of work. MaxAttempts counts the first
// try, so MaxAttempts 3 means at most two retries.
type Policy struct {
	MaxAttempts int
	Strategy    Strategy
}

// DefaultPolicy returns three attempts with exponential backoff from
// 200ms capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Strategy:    NewExponential(200*time.Millisecond, 5*time.Second),
	}
}

// Attempts returns the effective attempt budget, never less than one.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// ShouldRetry reports whether another attempt follows a failed attempt
// number attempt (1-indexed).
func (p Policy) ShouldRetry(attempt int) bool {
	return attempt < p.Attempts()
}

// Delay returns the wait after failed attempt number attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Strategy == nil {
		return 0
	}
	return p.Strategy.Delay(attempt)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
