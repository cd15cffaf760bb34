package l1segments

import (
	"image"
	"math"
	"time"
)

// LineSegment is a straight-line detection in image pixel coordinates.
// The origin is the top-left corner of the image, so y grows downwards.
type LineSegment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Seg is shorthand for constructing a LineSegment.
func Seg(x1, y1, x2, y2 int) LineSegment {
	return LineSegment{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// DeltaX returns x1 - x2.
func (l LineSegment) DeltaX() float64 { return float64(l.X1 - l.X2) }

// DeltaY returns y1 - y2.
func (l LineSegment) DeltaY() float64 { return float64(l.Y1 - l.Y2) }

// IsVertical reports whether the segment has no horizontal extent.
func (l LineSegment) IsVertical() bool { return l.X1 == l.X2 }

// Gradient returns dy/dx. Callers must check IsVertical first.
func (l LineSegment) Gradient() float64 { return l.DeltaY() / l.DeltaX() }

// Length returns the Euclidean length of the segment.
func (l LineSegment) Length() float64 { return math.Hypot(l.DeltaX(), l.DeltaY()) }

// Points returns both endpoints.
func (l LineSegment) Points() (image.Point, image.Point) {
	return image.Pt(l.X1, l.Y1), image.Pt(l.X2, l.Y2)
}

// ExclusionBox is an axis-aligned rectangle reported by the object detector.
// Line segments touching a box cannot be road markings.
type ExclusionBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Box is shorthand for constructing an ExclusionBox.
func Box(x, y, w, h int) ExclusionBox {
	return ExclusionBox{X: x, Y: y, Width: w, Height: h}
}

// Contains reports whether (x, y) lies inside the box. Both bounds are
// inclusive: [X, X+Width] x [Y, Y+Height].
func (b ExclusionBox) Contains(x, y int) bool {
	return spanContains(b.X, b.Width, x) && spanContains(b.Y, b.Height, y)
}

// spanContains reports whether v lies in [lo, lo+size] without computing
// lo+size, which may not fit in an int.
func spanContains(lo, size, v int) bool {
	return size >= 0 && v >= lo && uint(v)-uint(lo) <= uint(size)
}

// Fits reports whether the box's far edges X+Width and Y+Height are
// representable as int.
func (b ExclusionBox) Fits() bool {
	return !(b.X > 0 && b.Width > math.MaxInt-b.X) && !(b.Y > 0 && b.Height > math.MaxInt-b.Y)
}

// ContainsEither reports whether either endpoint of l lies inside the box.
func (b ExclusionBox) ContainsEither(l LineSegment) bool {
	return b.Contains(l.X1, l.Y1) || b.Contains(l.X2, l.Y2)
}

// Frame is one captured image's worth of detector input.
type Frame struct {
	Number    uint64         `json:"frame"`
	Timestamp time.Time      `json:"-"`
	Lines     []LineSegment  `json:"lines"`
	Boxes     []ExclusionBox `json:"boxes"`
}
