// Package extract turns video into line-segment frames. The Hough
// extractor needs OpenCV and is only built with the gocv build tag; other
// builds get constructors that return ErrUnavailable.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
)

// ErrUnavailable is returned when the binary was built without OpenCV.
var ErrUnavailable = errors.New("extract: built without gocv support")

// HoughParams are the edge and line detector settings.
type HoughParams struct {
	CannyLow      float32 `json:"canny_low"`
	CannyHigh     float32 `json:"canny_high"`
	Rho           float32 `json:"rho"`
	Theta         float32 `json:"theta"`
	Threshold     int     `json:"threshold"`
	MinLineLength float32 `json:"min_line_length"`
	MaxLineGap    float32 `json:"max_line_gap"`
}

// DefaultHoughParams returns the settings tuned for 1080p dash footage.
func DefaultHoughParams() HoughParams {
	return HoughParams{
		CannyLow:      128,
		CannyHigh:     255,
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     32,
		MinLineLength: 16,
		MaxLineGap:    8,
	}
}

// Validate reports settings OpenCV would reject.
func (p HoughParams) Validate() error {
	switch {
	case p.CannyLow < 0 || p.CannyHigh < p.CannyLow:
		return fmt.Errorf("canny thresholds %v/%v out of order", p.CannyLow, p.CannyHigh)
	case p.Rho <= 0 || p.Theta <= 0:
		return fmt.Errorf("hough resolution rho=%v theta=%v must be positive", p.Rho, p.Theta)
	case p.Threshold <= 0:
		return fmt.Errorf("hough threshold %d must be positive", p.Threshold)
	case p.MinLineLength < 0 || p.MaxLineGap < 0:
		return fmt.Errorf("hough min length %v and max gap %v must not be negative", p.MinLineLength, p.MaxLineGap)
	}
	return nil
}

// Source yields frames until it returns io.EOF.
type Source interface {
	Next() (l1segments.Frame, error)
	Close() error
}

// Run reads src until it is exhausted or ctx ends, handing each frame to
// handler. It returns the number of frames read. Exhaustion is not an
// error.
func Run(ctx context.Context, src Source, handler func(l1segments.Frame)) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		f, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("frame %d: %w", n+1, err)
		}
		handler(f)
		n++
	}
}
