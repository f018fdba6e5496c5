// Package retry provides the backoff policy consumed by the retry layer:
// a lazy sequence of delays, generalized from ObjectFS's exponential
// backoff-with-jitter calculation into a reusable policy type that does
// not itself know how to execute or retry an operation.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy produces a lazy sequence of backoff delays. NewDelaySequence
// returns a fresh iterator each time, so a single Policy value is safe
// to share across concurrent retry attempts.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultPolicy mirrors ObjectFS's DefaultConfig: 5 attempts, 100ms
// initial delay, 30s cap, 2x multiplier, jitter on.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// DelaySequence is a lazy, stateful iterator over backoff delays. Next
// returns the delay before the next attempt and false once MaxAttempts
// retries have been exhausted.
type DelaySequence struct {
	policy  Policy
	attempt int
}

// NewDelaySequence starts a fresh delay sequence from p.
func (p Policy) NewDelaySequence() *DelaySequence {
	return &DelaySequence{policy: p.normalized()}
}

// Next returns the delay before the next retry attempt, or ok=false if
// the policy's attempt budget is exhausted.
func (s *DelaySequence) Next() (delay time.Duration, ok bool) {
	if s.attempt >= s.policy.MaxAttempts-1 {
		return 0, false
	}
	s.attempt++
	d := float64(s.policy.InitialDelay) * math.Pow(s.policy.Multiplier, float64(s.attempt-1))
	if d > float64(s.policy.MaxDelay) {
		d = float64(s.policy.MaxDelay)
	}
	if s.policy.Jitter {
		jitter := d * 0.2 * (rand.Float64()*2 - 1)
		d += jitter
	}
	return time.Duration(d), true
}

// Attempt returns the 1-based number of the attempt this sequence is
// about to make (i.e. the number of times Next has returned true, plus
// the initial attempt).
func (s *DelaySequence) Attempt() int {
	return s.attempt + 1
}
