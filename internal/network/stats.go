package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// Stats is what the feed readers report into.
type Stats interface {
	AddPacket(bytes int)
	AddFrame()
	AddMalformed()
	AddDropped()
}

// StatsSnapshot is the rate summary of one logging interval.
type StatsSnapshot struct {
	PacketsPerSec float64   `json:"packets_per_sec"`
	FramesPerSec  float64   `json:"frames_per_sec"`
	KBPerSec      float64   `json:"kb_per_sec"`
	Malformed     int64     `json:"malformed"`
	Dropped       int64     `json:"dropped"`
	Timestamp     time.Time `json:"timestamp"`
}

// FeedStats counts packets and decoded frames between log calls. It is safe
// for concurrent use.
type FeedStats struct {
	clock timeutil.Clock

	mu        sync.Mutex
	packets   int64
	bytes     int64
	frames    int64
	malformed int64
	dropped   int64
	lastReset time.Time
	latest    *StatsSnapshot
}

// NewFeedStats returns zeroed counters. A nil clock uses the system clock.
func NewFeedStats(clock timeutil.Clock) *FeedStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FeedStats{clock: clock, lastReset: clock.Now()}
}

func (s *FeedStats) AddPacket(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets++
	s.bytes += int64(bytes)
}

func (s *FeedStats) AddFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *FeedStats) AddMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed++
}

func (s *FeedStats) AddDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

// Rollover turns the counters since the last call into a snapshot, stores
// it as the latest and resets the counters. It returns nil when nothing
// happened in the interval.
func (s *FeedStats) Rollover() *StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	secs := now.Sub(s.lastReset).Seconds()
	packets, bytes, frames, malformed, dropped := s.packets, s.bytes, s.frames, s.malformed, s.dropped
	s.packets, s.bytes, s.frames, s.malformed, s.dropped = 0, 0, 0, 0, 0
	s.lastReset = now

	if packets == 0 && dropped == 0 {
		return nil
	}
	snap := &StatsSnapshot{
		Malformed: malformed,
		Dropped:   dropped,
		Timestamp: now,
	}
	if secs > 0 {
		snap.PacketsPerSec = float64(packets) / secs
		snap.FramesPerSec = float64(frames) / secs
		snap.KBPerSec = float64(bytes) / secs / 1024
	}
	s.latest = snap
	cp := *snap
	return &cp
}

// LogStats rolls the counters over and logs the rates.
func (s *FeedStats) LogStats() {
	snap := s.Rollover()
	if snap == nil {
		return
	}
	msg := fmt.Sprintf("stats (/sec): %.1f packets, %.1f frames, %.2f KB",
		snap.PacketsPerSec, snap.FramesPerSec, snap.KBPerSec)
	if snap.Malformed > 0 {
		msg += fmt.Sprintf(", %d malformed", snap.Malformed)
	}
	if snap.Dropped > 0 {
		msg += fmt.Sprintf(", %d dropped on forward", snap.Dropped)
	}
	monitoring.Logf("[feed] %s", msg)
}

// Latest returns a copy of the most recent snapshot, or nil.
func (s *FeedStats) Latest() *StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	cp := *s.latest
	return &cp
}

type noopStats struct{}

func (noopStats) AddPacket(int) {}
func (noopStats) AddFrame()     {}
func (noopStats) AddMalformed() {}
func (noopStats) AddDropped()   {}
