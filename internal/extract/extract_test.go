package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
)

type sliceSource struct {
	frames []l1segments.Frame
	err    error
	closed bool
}

func (s *sliceSource) Next() (l1segments.Frame, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return l1segments.Frame{}, s.err
		}
		return l1segments.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func TestDefaultHoughParams(t *testing.T) {
	p := DefaultHoughParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, 32, p.Threshold)
	assert.InDelta(t, 0.0174533, p.Theta, 1e-6)
}

func TestHoughParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HoughParams)
	}{
		{"canny order", func(p *HoughParams) { p.CannyHigh = p.CannyLow - 1 }},
		{"negative canny", func(p *HoughParams) { p.CannyLow = -1 }},
		{"rho", func(p *HoughParams) { p.Rho = 0 }},
		{"theta", func(p *HoughParams) { p.Theta = -1 }},
		{"threshold", func(p *HoughParams) { p.Threshold = 0 }},
		{"gap", func(p *HoughParams) { p.MaxLineGap = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultHoughParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestRunUntilExhausted(t *testing.T) {
	src := &sliceSource{frames: []l1segments.Frame{{Number: 1}, {Number: 2}, {Number: 3}}}
	var got []uint64
	n, err := Run(context.Background(), src, func(f l1segments.Frame) { got = append(got, f.Number) })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("decode failed")
	src := &sliceSource{frames: []l1segments.Frame{{Number: 1}}, err: boom}
	n, err := Run(context.Background(), src, func(l1segments.Frame) {})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &sliceSource{frames: []l1segments.Frame{{Number: 1}, {Number: 2}}}
	n, err := Run(ctx, src, func(l1segments.Frame) { cancel() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}
