package l1segments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSegmentMeasures(t *testing.T) {
	t.Parallel()

	l := Seg(650, 820, 750, 720)
	assert.Equal(t, -100.0, l.DeltaX())
	assert.Equal(t, 100.0, l.DeltaY())
	assert.Equal(t, -1.0, l.Gradient())
	assert.InDelta(t, 141.421, l.Length(), 0.001)
	assert.False(t, l.IsVertical())
	assert.True(t, Seg(5, 0, 5, 10).IsVertical())
}

func TestExclusionBoxContainsInclusiveBounds(t *testing.T) {
	t.Parallel()

	b := Box(100, 200, 50, 20)
	tests := []struct {
		name string
		x, y int
		want bool
	}{
		{"top-left corner", 100, 200, true},
		{"bottom-right corner", 150, 220, true},
		{"inside", 120, 210, true},
		{"left of box", 99, 210, false},
		{"right of box", 151, 210, false},
		{"above box", 120, 199, false},
		{"below box", 120, 221, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Contains(tt.x, tt.y))
		})
	}
}

func TestExclusionBoxContainsNearIntLimits(t *testing.T) {
	t.Parallel()

	wide := Box(10, 0, math.MaxInt, 5)
	assert.False(t, wide.Fits())
	assert.True(t, wide.Contains(10, 0))
	assert.True(t, wide.Contains(math.MaxInt, 5))
	assert.False(t, wide.Contains(9, 0))
	assert.False(t, wide.Contains(500, 6))

	tall := Box(0, 1, 2, math.MaxInt)
	assert.False(t, tall.Fits())
	assert.True(t, tall.Contains(1, math.MaxInt))
	assert.False(t, tall.Contains(1, 0))

	low := Box(math.MinInt, math.MinInt, math.MaxInt, math.MaxInt)
	assert.True(t, low.Fits())
	assert.True(t, low.Contains(-1, -1))
	assert.False(t, low.Contains(0, 0))

	assert.True(t, Box(100, 200, 50, 20).Fits())
	assert.False(t, Box(100, 200, -1, 20).Contains(100, 200))
}

func TestExclusionBoxContainsEither(t *testing.T) {
	t.Parallel()

	b := Box(0, 0, 10, 10)
	assert.True(t, b.ContainsEither(Seg(5, 5, 100, 100)))
	assert.True(t, b.ContainsEither(Seg(100, 100, 10, 10)))
	assert.False(t, b.ContainsEither(Seg(11, 0, 100, 100)))
}
