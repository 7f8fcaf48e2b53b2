package backoff_test

import (
	"testing"
	"time"

	"github.com/weftlabs/weft/backoff"
	"github.com/weftlabs/weft/definition"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := &backoff.Constant{Interval: 5 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestLinear_GrowsLinearlyAndCaps(t *testing.T) {
	l := &backoff.Linear{Initial: time.Second, Max: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{10, 5 * time.Second},
		{100, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := l.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_DoublesEachAttemptAndCaps(t *testing.T) {
	e := &backoff.Exponential{Initial: time.Second, Max: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{20, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestFullJitter_WithinBounds(t *testing.T) {
	f := &backoff.FullJitter{Initial: time.Second, Max: 10 * time.Second}

	for attempt := 1; attempt <= 5; attempt++ {
		for range 100 {
			got := f.Delay(attempt)
			if got < 0 {
				t.Errorf("Delay(%d) = %v, should be >= 0", attempt, got)
			}
			if got > 10*time.Second {
				t.Errorf("Delay(%d) = %v, should be <= 10s", attempt, got)
			}
		}
	}
}

func TestFullJitter_ProducesVariance(t *testing.T) {
	f := &backoff.FullJitter{Initial: time.Second, Max: time.Minute}

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[f.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestFromPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy definition.RetryPolicy
		want   any
	}{
		{"constant", definition.RetryPolicy{Backoff: "constant"}, &backoff.Constant{}},
		{"linear", definition.RetryPolicy{Backoff: "linear"}, &backoff.Linear{}},
		{"exponential", definition.RetryPolicy{Backoff: "exponential"}, &backoff.Exponential{}},
		{"jitter", definition.RetryPolicy{Backoff: "jitter"}, &backoff.FullJitter{}},
		{"empty defaults to jitter", definition.RetryPolicy{}, &backoff.FullJitter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backoff.FromPolicy(tt.policy)
			switch tt.want.(type) {
			case *backoff.Constant:
				if _, ok := got.(*backoff.Constant); !ok {
					t.Errorf("strategy = %T, want Constant", got)
				}
			case *backoff.Linear:
				if _, ok := got.(*backoff.Linear); !ok {
					t.Errorf("strategy = %T, want Linear", got)
				}
			case *backoff.Exponential:
				if _, ok := got.(*backoff.Exponential); !ok {
					t.Errorf("strategy = %T, want Exponential", got)
				}
			case *backoff.FullJitter:
				if _, ok := got.(*backoff.FullJitter); !ok {
					t.Errorf("strategy = %T, want FullJitter", got)
				}
			}
		})
	}
}

func TestFromPolicy_DefaultsZeroDurations(t *testing.T) {
	s := backoff.FromPolicy(definition.RetryPolicy{Backoff: "exponential"})
	e, ok := s.(*backoff.Exponential)
	if !ok {
		t.Fatalf("strategy = %T, want Exponential", s)
	}
	if e.Initial != time.Second {
		t.Errorf("Initial = %v, want 1s", e.Initial)
	}
	if e.Max != time.Minute {
		t.Errorf("Max = %v, want 1m", e.Max)
	}
}
