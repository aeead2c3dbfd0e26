package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe time source for tests: every Now()
// call returns the base time advanced by one more fixed step.
//
// Unlike engine.WallClock, DeterministicClock can be reset for test reuse.
// This enables the same scenario to run multiple times with identical
// timestamps, which golden-file comparison depends on.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	base  time.Time
	step  time.Duration
	ticks int64
}

// NewDeterministicClock creates a clock starting at base. Each Now() call
// advances by step before returning, so the first call returns base+step.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{base: base.UTC(), step: step}
}

// Now advances the clock by one step and returns the new time.
//
// Monotonic: successive calls never return equal or decreasing times as
// long as step is positive.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return c.base.Add(time.Duration(c.ticks) * c.step)
}

// Peek returns the time the next Now() call will produce, without advancing.
func (c *DeterministicClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.ticks+1) * c.step)
}

// Reset rewinds the clock to its base. After Reset, the next Now() returns
// base+step again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
