package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper records requested sleeps instead of waiting, so rule sets with
// sleep actions run instantly under test.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

// NewSleeper creates a Sleeper with nothing recorded.
func NewSleeper() *Sleeper {
	return &Sleeper{}
}

// Sleep records d and returns immediately. It still honours cancellation.
// Matches the signature engine.WithSleep expects.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

// Slept returns a copy of the recorded durations in call order.
func (s *Sleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.slept))
	copy(out, s.slept)
	return out
}

// Total returns the sum of the recorded durations.
func (s *Sleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.slept {
		total += d
	}
	return total
}

// Reset forgets everything recorded. Used for test reuse.
func (s *Sleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = nil
}
