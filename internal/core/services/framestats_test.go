package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameStats_TickOncePerSecond(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	stats := NewFrameStats(start)

	// Nine frames inside the first second: no tick.
	for i := 1; i <= 9; i++ {
		_, total, tick := stats.Record(start.Add(time.Duration(i) * 100 * time.Millisecond))
		assert.False(t, tick, "frame %d should not tick", i)
		assert.Equal(t, i, total)
	}

	// The frame on the second boundary ticks and reports the window.
	fps, total, tick := stats.Record(start.Add(time.Second))
	assert.True(t, tick)
	assert.Equal(t, 10, fps)
	assert.Equal(t, 10, total)

	// The window resets; the next frame starts a fresh count.
	fps, total, tick = stats.Record(start.Add(1100 * time.Millisecond))
	assert.False(t, tick)
	assert.Equal(t, 11, total)

	fps, total, tick = stats.Record(start.Add(2 * time.Second))
	assert.True(t, tick)
	assert.Equal(t, 2, fps)
	assert.Equal(t, 12, total)
}

func TestFrameStats_TotalAccumulates(t *testing.T) {
	now := time.Now()
	stats := NewFrameStats(now)
	for i := 0; i < 5; i++ {
		stats.Record(now)
	}
	assert.Equal(t, 5, stats.Total())
}
