// Package l2roi models the fixed trapezoidal region of interest that covers
// the road surface ahead of the vehicle, and the four line equations derived
// from it that the line classifier and geometry engine test against.
package l2roi

import (
	"errors"
	"fmt"
	"image"
)

// Config describes the trapezoid. Heights are measured from the top of the
// image; widths are centred on the image's vertical midline.
type Config struct {
	ImageWidth   int `json:"image_width"`
	ImageHeight  int `json:"image_height"`
	TopHeight    int `json:"top_height"`
	BottomHeight int `json:"bottom_height"`
	TopWidth     int `json:"top_width"`
	BottomWidth  int `json:"bottom_width"`
}

// DefaultConfig returns the trapezoid used for 1920x1080 dash-cam footage.
func DefaultConfig() Config {
	return Config{
		ImageWidth:   1920,
		ImageHeight:  1080,
		TopHeight:    660,
		BottomHeight: 840,
		TopWidth:     200,
		BottomWidth:  900,
	}
}

// Validate reports whether the trapezoid is usable.
func (c Config) Validate() error {
	switch {
	case c.ImageWidth <= 0 || c.ImageHeight <= 0:
		return fmt.Errorf("image size must be positive, got %dx%d", c.ImageWidth, c.ImageHeight)
	case c.TopHeight < 0 || c.BottomHeight > c.ImageHeight:
		return fmt.Errorf("roi heights %d..%d outside image height %d", c.TopHeight, c.BottomHeight, c.ImageHeight)
	case c.TopHeight >= c.BottomHeight:
		return fmt.Errorf("roi top height %d must be above bottom height %d", c.TopHeight, c.BottomHeight)
	case c.TopWidth <= 0 || c.BottomWidth <= 0:
		return fmt.Errorf("roi widths must be positive, got top=%d bottom=%d", c.TopWidth, c.BottomWidth)
	case c.TopWidth > c.ImageWidth || c.BottomWidth > c.ImageWidth:
		return fmt.Errorf("roi widths top=%d bottom=%d exceed image width %d", c.TopWidth, c.BottomWidth, c.ImageWidth)
	case c.TopWidth == c.BottomWidth:
		// Both mask edges would be vertical and have no slope-intercept form.
		return errors.New("roi top and bottom widths must differ")
	}
	return nil
}

// LineEquation is a line in slope-intercept form, y = M*x + C.
type LineEquation struct {
	M float64 `json:"m"`
	C float64 `json:"c"`
}

// Through returns the line through two points. The points must not share an
// x coordinate.
func Through(x1, y1, x2, y2 float64) LineEquation {
	m := (y1 - y2) / (x1 - x2)
	return LineEquation{M: m, C: y1 - m*x1}
}

// YAt returns the line's y at x.
func (e LineEquation) YAt(x float64) float64 { return e.M*x + e.C }

// XAt returns the line's x at y. M must be non-zero.
func (e LineEquation) XAt(y float64) float64 { return (y - e.C) / e.M }

// Region is the immutable region of interest. Build it once per session
// with New; nothing mutates it afterwards.
type Region struct {
	cfg Config

	topLeft, topRight, bottomRight, bottomLeft image.Point

	leftEdge, rightEdge           LineEquation
	leftThreshold, rightThreshold LineEquation
}

// New derives the corners and the four boundary equations from cfg.
func New(cfg Config) (*Region, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid roi config: %w", err)
	}

	mid := float64(cfg.ImageWidth) / 2
	top := float64(cfg.TopHeight)
	bottom := float64(cfg.BottomHeight)

	tlx := mid - float64(cfg.TopWidth)/2
	trx := mid + float64(cfg.TopWidth)/2
	brx := mid + float64(cfg.BottomWidth)/2
	blx := mid - float64(cfg.BottomWidth)/2

	r := &Region{
		cfg:         cfg,
		topLeft:     image.Pt(int(tlx), cfg.TopHeight),
		topRight:    image.Pt(int(trx), cfg.TopHeight),
		bottomRight: image.Pt(int(brx), cfg.BottomHeight),
		bottomLeft:  image.Pt(int(blx), cfg.BottomHeight),
	}

	r.leftEdge = Through(float64(r.topLeft.X), top, float64(r.bottomLeft.X), bottom)
	r.rightEdge = Through(float64(r.topRight.X), top, float64(r.bottomRight.X), bottom)

	topMid := float64(r.topLeft.X) + float64(cfg.TopWidth)/2
	oneThird := float64(r.bottomLeft.X) + float64(cfg.BottomWidth)/3
	twoThirds := float64(r.bottomLeft.X) + 2*float64(cfg.BottomWidth)/3
	r.leftThreshold = Through(topMid, top, oneThird, bottom)
	r.rightThreshold = Through(topMid, top, twoThirds, bottom)

	return r, nil
}

// Config returns the configuration the region was built from.
func (r *Region) Config() Config { return r.cfg }

// Corners returns the trapezoid corners clockwise from the top left.
func (r *Region) Corners() [4]image.Point {
	return [4]image.Point{r.topLeft, r.topRight, r.bottomRight, r.bottomLeft}
}

// LeftEdge is the line from the top-left corner to the bottom-left corner.
func (r *Region) LeftEdge() LineEquation { return r.leftEdge }

// RightEdge is the line from the top-right corner to the bottom-right corner.
func (r *Region) RightEdge() LineEquation { return r.rightEdge }

// LeftThreshold runs from the top edge midpoint to one third of the way
// along the bottom edge. Left markings lie between it and LeftEdge.
func (r *Region) LeftThreshold() LineEquation { return r.leftThreshold }

// RightThreshold runs from the top edge midpoint to two thirds of the way
// along the bottom edge. Right markings lie between it and RightEdge.
func (r *Region) RightThreshold() LineEquation { return r.rightThreshold }

// TopHeight is the y of the trapezoid's top edge.
func (r *Region) TopHeight() float64 { return float64(r.cfg.TopHeight) }

// BottomHeight is the y of the trapezoid's bottom edge.
func (r *Region) BottomHeight() float64 { return float64(r.cfg.BottomHeight) }
