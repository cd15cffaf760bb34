package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/perf"
)

func TestRunnerLatestBeforeFirstFrame(t *testing.T) {
	r := NewRunner(newDetector(t), nil)
	_, ok := r.Latest()
	assert.False(t, ok)
	assert.Zero(t, r.Frames())
	assert.Nil(t, r.Perf())
}

func TestRunnerFansOutInOrder(t *testing.T) {
	r := NewRunner(newDetector(t), perf.NewTracker(nil))

	var seen []uint64
	r.AddSink(SinkFunc(func(res Result) { seen = append(seen, res.Frame) }))

	for i := 1; i <= 3; i++ {
		r.HandleFrame(l1segments.Frame{Number: uint64(i), Lines: []l1segments.LineSegment{left1, right1}})
	}

	assert.Equal(t, []uint64{1, 2, 3}, seen)
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), latest.Frame)
	assert.Equal(t, l5state.WithinLanes, latest.State)
	assert.Equal(t, 3, r.Perf().Snapshot().Frames)
}

func TestRunnerConcurrentFeeds(t *testing.T) {
	r := NewRunner(newDetector(t), perf.NewTracker(nil))

	var mu sync.Mutex
	count := 0
	r.AddSink(SinkFunc(func(Result) {
		mu.Lock()
		count++
		mu.Unlock()
	}))

	const feeds, perFeed = 8, 25
	var wg sync.WaitGroup
	for f := 0; f < feeds; f++ {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			for i := 0; i < perFeed; i++ {
				r.HandleFrame(l1segments.Frame{Number: uint64(f*perFeed + i)})
				r.Latest()
			}
		}(f)
	}
	wg.Wait()

	assert.Equal(t, uint64(feeds*perFeed), r.Frames())
	assert.Equal(t, feeds*perFeed, count)
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, l5state.NoMarkings, latest.State)
}
