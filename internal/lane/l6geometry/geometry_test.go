package l6geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	roi, err := l2roi.New(l2roi.DefaultConfig())
	require.NoError(t, err)
	e, err := NewEngine(roi, DefaultConfig())
	require.NoError(t, err)
	return e
}

func classify(t *testing.T, lines ...l1segments.LineSegment) l3buckets.ClassifiedLineSet {
	t.Helper()
	roi, err := l2roi.New(l2roi.DefaultConfig())
	require.NoError(t, err)
	return l3buckets.NewClassifier(roi, l3buckets.DefaultClassifierConfig()).Classify(lines, nil)
}

var (
	left1  = l1segments.Seg(650, 820, 750, 720)
	left2  = l1segments.Seg(640, 830, 740, 730)
	right1 = l1segments.Seg(1270, 820, 1170, 720)
	right2 = l1segments.Seg(1280, 830, 1180, 730)
	middle = l1segments.Seg(950, 830, 970, 700)
)

func TestWithinLanesOverlay(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	set := classify(t, left1, left2, right1, right2)
	require.Len(t, set.Left, 2)
	require.Len(t, set.Right, 2)

	g := e.Update(l5state.WithinLanes, &set)
	require.NotNil(t, g.Overlay)
	assert.Equal(t, Polygon{
		image.Pt(750, 720),
		image.Pt(1170, 720),
		image.Pt(1290, 840),
		image.Pt(630, 840),
	}, *g.Overlay)

	require.NotNil(t, g.Left)
	assert.Equal(t, -1.0, g.Left.Line.M)
	assert.Equal(t, 1470.0, g.Left.Line.C)
	assert.Equal(t, 720.0, g.Left.MinY)
	assert.Equal(t, 1.0, g.Right.Line.M)
	assert.Equal(t, -450.0, g.Right.Line.C)

	// The markings mirror each other about the image centre.
	require.NotNil(t, g.Turning)
	assert.InDelta(t, g.Left.Distance, g.Right.Distance, 1e-9)
	assert.InDelta(t, 0, g.Turning.Difference, 1e-9)
	assert.Empty(t, g.Hint)
}

func TestAverageDistanceDividesByLineCount(t *testing.T) {
	t.Parallel()
	roi, err := l2roi.New(l2roi.DefaultConfig())
	require.NoError(t, err)

	edge := roi.LeftEdge()
	want := math.Abs(650-edge.XAt(820)) + math.Abs(750-edge.XAt(720))
	assert.InDelta(t, want, averageDistance([]l1segments.LineSegment{left1}, edge), 1e-9)

	fit := fitEdge([]l1segments.LineSegment{left1, left2}, edge)
	want2 := (endpointDistance(left1, edge) + endpointDistance(left2, edge)) / 2
	assert.InDelta(t, want2, fit.Distance, 1e-9)
	assert.Equal(t, 2, fit.Count)
}

func TestOverlayAbsentWhenSlopeIsZero(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	flat := EdgeFit{Line: l2roi.LineEquation{M: 0, C: 700}, MinY: 700}
	steep := EdgeFit{Line: l2roi.LineEquation{M: 1, C: -450}, MinY: 720}
	assert.Nil(t, e.overlay(flat, steep))
	assert.Nil(t, e.overlay(steep, flat))
}

func TestWithinLanesNeedsBothEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []l1segments.LineSegment
	}{
		{"no markings", nil},
		{"left only", []l1segments.LineSegment{left1, left2}},
		{"right only", []l1segments.LineSegment{right1, right2}},
		{"middle only", []l1segments.LineSegment{middle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t)

			// Leave a changing-lane tracker behind so the reset is observable.
			mid := classify(t, middle)
			e.Update(l5state.ChangingLanes, &mid)
			require.NotEqual(t, ChangingLaneTracker{}, e.Tracker())

			set := classify(t, tt.lines...)
			g := e.Update(l5state.WithinLanes, &set)
			assert.Equal(t, l5state.WithinLanes, g.State)
			assert.Nil(t, g.Turning)
			assert.Nil(t, g.Overlay)
			assert.Nil(t, g.Left)
			assert.Nil(t, g.Right)
			assert.Empty(t, g.Hint)
			assert.Equal(t, ChangingLaneTracker{}, e.Tracker())
		})
	}
}

func TestOverlayAbsentWhenEdgesCrossInView(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	left := EdgeFit{Line: l2roi.LineEquation{M: -1, C: 1470}, MinY: 500}
	right := EdgeFit{Line: l2roi.LineEquation{M: 1, C: -450}, MinY: 505}
	// Lines meet at y=510, below the top of the overlay at y=500.
	assert.Nil(t, e.overlay(left, right))

	parallel := EdgeFit{Line: l2roi.LineEquation{M: -1, C: 1800}, MinY: 700}
	assert.Nil(t, e.overlay(left, parallel))

	left.MinY = 720
	right.MinY = 730
	assert.NotNil(t, e.overlay(left, right))
}

func TestTurning(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		raw  float64
		diff float64
		pct  int
		text string
	}{
		{0, 0, 0, "centered"},
		{50, 0.25, 5, "turn right 5%"},
		{-50, -0.25, -5, "turn left 5%"},
		{75, 0.375, 7, "turn right 7%"},
		{-25, -0.125, -7, "turn left 7%"},
		{300, 1, 0, "turn right 0%"},
		{-400, -1, 0, "turn left 0%"},
	}
	for _, tt := range tests {
		got := e.turning(tt.raw)
		assert.Equal(t, tt.diff, got.Difference, "raw %v", tt.raw)
		assert.Equal(t, tt.pct, got.Percentage, "raw %v", tt.raw)
		assert.Equal(t, tt.text, got.Text, "raw %v", tt.raw)
	}
}

func TestChangingLanesHint(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	set := classify(t, middle)
	require.Len(t, set.Middle, 1)
	shifted := classify(t, l1segments.Seg(1000, 830, 1020, 700))
	require.Len(t, shifted.Middle, 1)
	var empty l3buckets.ClassifiedLineSet

	for i := 1; i <= 9; i++ {
		g := e.Update(l5state.ChangingLanes, &set)
		assert.Empty(t, g.Hint, "frame %d", i)
		assert.Equal(t, i, e.Tracker().Counter)
	}
	snapshot := e.Tracker().Snapshot

	// Frames without middle markings leave the tracker alone.
	e.Update(l5state.ChangingLanes, &empty)
	assert.Equal(t, ChangingLaneTracker{Snapshot: snapshot, Counter: 9}, e.Tracker())

	g := e.Update(l5state.ChangingLanes, &set)
	assert.Equal(t, HintNotTurning, g.Hint)
	assert.Equal(t, 0, e.Tracker().Counter)

	for i := 1; i <= 9; i++ {
		g = e.Update(l5state.ChangingLanes, &set)
		assert.Equal(t, HintNotTurning, g.Hint, "hint persists, frame %d", i)
	}
	g = e.Update(l5state.ChangingLanes, &shifted)
	assert.Equal(t, HintTurningRight, g.Hint)

	for i := 1; i <= 9; i++ {
		e.Update(l5state.ChangingLanes, &shifted)
	}
	g = e.Update(l5state.ChangingLanes, &set)
	assert.Equal(t, HintTurningLeft, g.Hint)

	// Leaving the state resets the tracker and clears the hint.
	e.Update(l5state.ChangingLanes, &set)
	g = e.Update(l5state.LeftOnly, &set)
	assert.Empty(t, g.Hint)
	assert.Nil(t, g.Overlay)
	assert.Nil(t, g.Turning)
	assert.Equal(t, ChangingLaneTracker{}, e.Tracker())
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	t.Parallel()
	roi, err := l2roi.New(l2roi.DefaultConfig())
	require.NoError(t, err)

	_, err = NewEngine(roi, Config{ClampDistance: 0, ChangingLanesFrames: 10})
	assert.Error(t, err)
	_, err = NewEngine(roi, Config{ClampDistance: 200})
	assert.Error(t, err)
}
