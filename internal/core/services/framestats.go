package services

import (
	"sync"
	"time"
)

// FrameStats tracks camera frame counters for the relay: total frames since
// startup plus a per-second window for the FPS readout. It replaces what
// would otherwise be free-floating process globals.
type FrameStats struct {
	mu        sync.Mutex
	total     int
	lastSec   int
	lastReset time.Time
}

func NewFrameStats(now time.Time) *FrameStats {
	return &FrameStats{lastReset: now}
}

// Record counts one received frame. When a full second has elapsed since the
// last boundary it returns tick=true with the fps of that window and resets
// the window; the total keeps accumulating either way.
func (s *FrameStats) Record(now time.Time) (fps, total int, tick bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.lastSec++
	if now.Sub(s.lastReset) >= time.Second {
		fps = s.lastSec
		s.lastSec = 0
		s.lastReset = now
		return fps, s.total, true
	}
	return 0, s.total, false
}

// Total returns the number of frames received since startup.
func (s *FrameStats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
