package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeqClockMonotonic(t *testing.T) {
	c := NewSeqClock()

	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestWallClockUTC(t *testing.T) {
	now := WallClock{}.Now()
	_, offset := now.Zone()
	assert.Zero(t, offset)
}
