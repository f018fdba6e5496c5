package retry

import (
	"testing"
	"time"
)

func TestDelaySequence_RespectsMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: false}
	seq := p.NewDelaySequence()

	var delays []time.Duration
	for {
		d, ok := seq.Next()
		if !ok {
			break
		}
		delays = append(delays, d)
	}

	if len(delays) != 2 {
		t.Fatalf("expected 2 delays for 3 max attempts, got %d", len(delays))
	}
	if delays[0] != 10*time.Millisecond {
		t.Errorf("expected first delay 10ms, got %v", delays[0])
	}
	if delays[1] != 20*time.Millisecond {
		t.Errorf("expected second delay 20ms, got %v", delays[1])
	}
}

func TestDelaySequence_CapsAtMaxDelay(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10, Jitter: false}
	seq := p.NewDelaySequence()

	var last time.Duration
	for {
		d, ok := seq.Next()
		if !ok {
			break
		}
		if d > p.MaxDelay {
			t.Fatalf("delay %v exceeded max delay %v", d, p.MaxDelay)
		}
		last = d
	}
	if last != p.MaxDelay {
		t.Errorf("expected final delay to settle at cap %v, got %v", p.MaxDelay, last)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", p.MaxAttempts)
	}
}
