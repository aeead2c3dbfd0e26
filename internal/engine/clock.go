package engine

import (
	"sync/atomic"
	"time"
)

// TimeSource supplies timestamps for checkpoints and undo entries.
// Implemented by WallClock (production) and testutil.DeterministicClock.
type TimeSource interface {
	Now() time.Time
}

// WallClock reads the system clock in UTC.
type WallClock struct{}

// Now returns the current UTC time.
func (WallClock) Now() time.Time {
	return time.Now().UTC()
}

// SeqClock is a monotonic logical clock for undo-entry ordering.
//
// Wall timestamps alone cannot totally order entries written within the
// same instant, so every entry is also stamped with a strictly increasing
// seq from this clock. Reverse replay orders by (created_at, seq) and is
// therefore deterministic.
//
// Thread-safety: SeqClock is safe for concurrent use (atomic operations),
// though the manager's mutex means only one goroutine typically calls Next.
type SeqClock struct {
	seq atomic.Int64
}

// NewSeqClock creates a new clock starting at 0.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *SeqClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *SeqClock) Current() int64 {
	return c.seq.Load()
}
