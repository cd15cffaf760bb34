// Package perf times the per-frame pipeline and summarises frame times.
package perf

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// Snapshot is the live view shown alongside each result.
type Snapshot struct {
	Frames     int     `json:"frames"`
	CurrentFPS float64 `json:"current_fps"`
	AverageFPS float64 `json:"average_fps"`
	LastMs     float64 `json:"last_ms"`
}

// Summary describes the distribution of recorded frame times.
type Summary struct {
	Frames int     `json:"frames"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Tracker records how long each frame takes. StartFrame and EndFrame must
// bracket one frame at a time; the read methods are safe to call from other
// goroutines.
type Tracker struct {
	clock timeutil.Clock

	mu         sync.Mutex
	start      time.Time
	frameMs    []float64
	currentFPS float64
	averageFPS float64
	fpsSamples int
}

// NewTracker returns a Tracker reading clock. A nil clock uses the system
// clock.
func NewTracker(clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{clock: clock}
}

// StartFrame marks the beginning of a frame.
func (t *Tracker) StartFrame() {
	now := t.clock.Now()
	t.mu.Lock()
	t.start = now
	t.mu.Unlock()
}

// EndFrame records the time since StartFrame and returns it.
//
// The first frame is excluded from the average FPS since it includes
// warm-up work.
func (t *Tracker) EndFrame() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.clock.Since(t.start)
	ms := float64(d) / float64(time.Millisecond)
	t.frameMs = append(t.frameMs, ms)

	if ms <= 0 {
		t.currentFPS = 0
		return d
	}
	t.currentFPS = 1000 / ms
	if len(t.frameMs) > 1 {
		t.fpsSamples++
		t.averageFPS += (t.currentFPS - t.averageFPS) / float64(t.fpsSamples)
	}
	return d
}

// Snapshot returns the live counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Frames:     len(t.frameMs),
		CurrentFPS: t.currentFPS,
		AverageFPS: t.averageFPS,
	}
	if n := len(t.frameMs); n > 0 {
		s.LastMs = t.frameMs[n-1]
	}
	return s
}

// FrameTimes returns a copy of every recorded frame time in milliseconds.
func (t *Tracker) FrameTimes() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float64, len(t.frameMs))
	copy(out, t.frameMs)
	return out
}

// Summary computes the distribution of recorded frame times.
func (t *Tracker) Summary() Summary {
	return Summarize(t.FrameTimes())
}

// Summarize describes frameMs. It does not modify its argument.
func Summarize(frameMs []float64) Summary {
	s := Summary{Frames: len(frameMs)}
	if len(frameMs) == 0 {
		return s
	}

	sorted := make([]float64, len(frameMs))
	copy(sorted, frameMs)
	sort.Float64s(sorted)

	s.MeanMs, s.StdMs = stat.MeanStdDev(sorted, nil)
	if len(sorted) == 1 {
		s.StdMs = 0
	}
	s.MinMs = sorted[0]
	s.MaxMs = sorted[len(sorted)-1]
	s.P50Ms = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	s.P99Ms = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	return s
}
