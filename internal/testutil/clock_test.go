package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClockSteps(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDeterministicClock(base, time.Second)

	assert.Equal(t, base.Add(time.Second), c.Now())
	assert.Equal(t, base.Add(2*time.Second), c.Now())
}

func TestDeterministicClockPeek(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDeterministicClock(base, time.Minute)

	assert.Equal(t, base.Add(time.Minute), c.Peek())
	assert.Equal(t, base.Add(time.Minute), c.Now(), "peek must not advance")
}

func TestDeterministicClockReset(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDeterministicClock(base, time.Second)

	first := c.Now()
	c.Now()
	c.Reset()

	assert.Equal(t, first, c.Now(), "after reset the sequence repeats")
}
