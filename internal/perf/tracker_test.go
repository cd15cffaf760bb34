package perf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/timeutil"
)

func TestTrackerFPS(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	tr := NewTracker(clock)

	frame := func(d time.Duration) time.Duration {
		tr.StartFrame()
		clock.Advance(d)
		return tr.EndFrame()
	}

	assert.Equal(t, 100*time.Millisecond, frame(100*time.Millisecond))
	snap := tr.Snapshot()
	assert.Equal(t, 1, snap.Frames)
	assert.InDelta(t, 10, snap.CurrentFPS, 1e-9)
	assert.Zero(t, snap.AverageFPS, "first frame is warm-up")

	frame(20 * time.Millisecond)
	frame(40 * time.Millisecond)
	snap = tr.Snapshot()
	assert.Equal(t, 3, snap.Frames)
	assert.InDelta(t, 25, snap.CurrentFPS, 1e-9)
	assert.InDelta(t, (50.0+25.0)/2, snap.AverageFPS, 1e-9)
	assert.InDelta(t, 40, snap.LastMs, 1e-9)

	assert.Equal(t, []float64{100, 20, 40}, tr.FrameTimes())
}

func TestTrackerZeroDurationFrame(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	tr := NewTracker(clock)

	tr.StartFrame()
	tr.EndFrame()
	tr.StartFrame()
	tr.EndFrame()
	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.Frames)
	assert.Zero(t, snap.CurrentFPS)
	assert.Zero(t, snap.AverageFPS)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Summary{}, Summarize(nil))

	one := Summarize([]float64{12})
	assert.Equal(t, Summary{Frames: 1, MeanMs: 12, MinMs: 12, MaxMs: 12, P50Ms: 12, P95Ms: 12, P99Ms: 12}, one)

	in := []float64{30, 10, 20, 40}
	s := Summarize(in)
	require.Equal(t, 4, s.Frames)
	assert.InDelta(t, 25, s.MeanMs, 1e-9)
	assert.InDelta(t, 12.9099, s.StdMs, 1e-4) // sample standard deviation
	assert.Equal(t, 10.0, s.MinMs)
	assert.Equal(t, 40.0, s.MaxMs)
	assert.Equal(t, 20.0, s.P50Ms)
	assert.Equal(t, 40.0, s.P95Ms)
	assert.Equal(t, []float64{30, 10, 20, 40}, in, "input left unsorted")
}
