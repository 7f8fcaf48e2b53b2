// Package backoff provides pluggable retry delay strategies for step
// execution. All strategies are safe for concurrent use (they are
// stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/weftlabs/weft/definition"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// FromPolicy builds the strategy a step's retry policy names. Zero
// Initial/Max fall back to 1s and 1m. Unknown names get full jitter,
// the engine default.
func FromPolicy(p definition.RetryPolicy) Strategy {
	initial := p.Initial
	if initial <= 0 {
		initial = 1 * time.Second
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = 1 * time.Minute
	}

	switch p.Backoff {
	case "constant":
		return &Constant{Interval: initial}
	case "linear":
		return &Linear{Initial: initial, Max: maxDelay}
	case "exponential":
		return &Exponential{Initial: initial, Max: maxDelay}
	default:
		return &FullJitter{Initial: initial, Max: maxDelay}
	}
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear increases the delay linearly with the attempt number.
// Delay = min(Initial * attempt, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// FullJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
// This prevents thundering herd when many retries happen simultaneously.
type FullJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (f *FullJitter) Delay(attempt int) time.Duration {
	base := float64(f.Initial) * math.Pow(2, float64(attempt-1))
	if f.Max > 0 && base > float64(f.Max) {
		base = float64(f.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// Default returns the strategy used when a step declares no retry
// policy: full jitter with 1s initial and 1m max.
func Default() Strategy {
	return &FullJitter{Initial: 1 * time.Second, Max: 1 * time.Minute}
}
