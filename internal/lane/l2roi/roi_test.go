package l2roi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegion(t *testing.T) {
	t.Parallel()

	r, err := New(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, [4]image.Point{
		image.Pt(860, 660),
		image.Pt(1060, 660),
		image.Pt(1410, 840),
		image.Pt(510, 840),
	}, r.Corners())

	// Edges pass through their corners.
	assert.InDelta(t, 660, r.LeftEdge().YAt(860), 1e-9)
	assert.InDelta(t, 840, r.LeftEdge().YAt(510), 1e-9)
	assert.InDelta(t, 660, r.RightEdge().YAt(1060), 1e-9)
	assert.InDelta(t, 840, r.RightEdge().YAt(1410), 1e-9)
	assert.InDelta(t, -180.0/350.0, r.LeftEdge().M, 1e-12)
	assert.InDelta(t, 180.0/350.0, r.RightEdge().M, 1e-12)

	// Thresholds meet at the top midpoint and split the bottom edge in thirds.
	assert.InDelta(t, 660, r.LeftThreshold().YAt(960), 1e-9)
	assert.InDelta(t, 840, r.LeftThreshold().YAt(810), 1e-9)
	assert.InDelta(t, 660, r.RightThreshold().YAt(960), 1e-9)
	assert.InDelta(t, 840, r.RightThreshold().YAt(1110), 1e-9)
	assert.InDelta(t, -1.2, r.LeftThreshold().M, 1e-12)
	assert.InDelta(t, 1.2, r.RightThreshold().M, 1e-12)

	assert.Equal(t, 660.0, r.TopHeight())
	assert.Equal(t, 840.0, r.BottomHeight())
}

func TestLineEquationXAtInvertsYAt(t *testing.T) {
	t.Parallel()

	e := Through(0, 10, 10, 30)
	assert.Equal(t, 2.0, e.M)
	assert.Equal(t, 10.0, e.C)
	for _, x := range []float64{-5, 0, 3.5, 100} {
		assert.InDelta(t, x, e.XAt(e.YAt(x)), 1e-9)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	mutate := func(f func(*Config)) Config {
		c := DefaultConfig()
		f(&c)
		return c
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero image", mutate(func(c *Config) { c.ImageWidth = 0 })},
		{"top below bottom", mutate(func(c *Config) { c.TopHeight = 900 })},
		{"bottom outside image", mutate(func(c *Config) { c.BottomHeight = 2000 })},
		{"zero width", mutate(func(c *Config) { c.TopWidth = 0 })},
		{"too wide", mutate(func(c *Config) { c.BottomWidth = 4000 })},
		{"rectangle", mutate(func(c *Config) { c.TopWidth = 900 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}
