package engine

import "sync/atomic"

// Clock is a monotonic logical clock for transcript events.
//
// Every event recorded for a session is stamped with a strictly increasing
// seq from this clock, so transcripts order the same way on every run and
// never depend on wall-clock time.
//
// Clock is safe for concurrent use, though a session only ever calls Next
// from its driving goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used to continue numbering after events already in the store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
