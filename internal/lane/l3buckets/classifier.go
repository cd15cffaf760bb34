package l3buckets

import (
	"math"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
)

// ClassifierConfig holds the classifier thresholds.
type ClassifierConfig struct {
	// HorizontalGradient is the |dy/dx| below which a segment is treated as
	// horizontal.
	HorizontalGradient float64 `json:"horizontal_gradient"`
	// HorizontalMinLength is the length a horizontal segment must exceed to
	// be counted.
	HorizontalMinLength float64 `json:"horizontal_min_length"`
	// BoundaryBand is how close (px) to the ROI top or bottom edge an
	// endpoint may come before the segment is treated as the mask's own edge.
	// Horizontals with an endpoint outside the ROI rows are dropped too.
	BoundaryBand float64 `json:"boundary_band"`
	// EdgeBuffer is added to the mask edge equations when rejecting
	// segments that trace the left or right mask edge.
	EdgeBuffer float64 `json:"edge_buffer"`
}

// DefaultClassifierConfig returns the thresholds tuned for 1080p footage.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		HorizontalGradient:  0.15,
		HorizontalMinLength: 50,
		BoundaryBand:        1,
		EdgeBuffer:          1,
	}
}

// Classifier buckets segments against a fixed Region. It holds no per-frame
// state and may be shared.
type Classifier struct {
	roi *l2roi.Region
	cfg ClassifierConfig
}

// NewClassifier returns a Classifier for roi.
func NewClassifier(roi *l2roi.Region, cfg ClassifierConfig) *Classifier {
	return &Classifier{roi: roi, cfg: cfg}
}

// Classify buckets every segment in lines, in order.
func (c *Classifier) Classify(lines []l1segments.LineSegment, boxes []l1segments.ExclusionBox) ClassifiedLineSet {
	var set ClassifiedLineSet
	for _, l := range lines {
		switch c.ClassifyLine(l, boxes) {
		case Horizontal:
			set.HorizontalCount++
		case Left:
			set.add(PositionLeft, l)
		case Middle:
			set.add(PositionMiddle, l)
		case Right:
			set.add(PositionRight, l)
		}
	}
	return set
}

// ClassifyLine decides the bucket for a single segment.
func (c *Classifier) ClassifyLine(l l1segments.LineSegment, boxes []l1segments.ExclusionBox) Bucket {
	for _, b := range boxes {
		if b.ContainsEither(l) {
			return Discarded
		}
	}
	if l.IsVertical() {
		return Discarded
	}

	g := l.Gradient()
	if math.Abs(g) < c.cfg.HorizontalGradient {
		if l.Length() > c.cfg.HorizontalMinLength && c.insideBands(l.Y1) && c.insideBands(l.Y2) {
			return Horizontal
		}
		return Discarded
	}

	if c.onOrAbove(l, c.roi.LeftEdge(), c.cfg.EdgeBuffer) {
		return Discarded
	}
	if c.within(l, c.roi.LeftThreshold()) && g < 0 {
		return Left
	}
	if c.onOrAbove(l, c.roi.RightEdge(), c.cfg.EdgeBuffer) {
		return Discarded
	}
	if c.within(l, c.roi.RightThreshold()) && g > 0 {
		return Right
	}
	return Middle
}

// insideBands reports whether y lies strictly between the ROI top and
// bottom edges with more than BoundaryBand pixels to spare on either side.
func (c *Classifier) insideBands(y int) bool {
	fy := float64(y)
	return fy > c.roi.TopHeight()+c.cfg.BoundaryBand &&
		fy < c.roi.BottomHeight()-c.cfg.BoundaryBand
}

// onOrAbove reports whether both endpoints sit at or above e (smaller y),
// allowing buffer pixels of slack.
func (c *Classifier) onOrAbove(l l1segments.LineSegment, e l2roi.LineEquation, buffer float64) bool {
	return float64(l.Y1) <= e.YAt(float64(l.X1))+buffer &&
		float64(l.Y2) <= e.YAt(float64(l.X2))+buffer
}

// within reports whether both endpoints have a y strictly less than e at
// their x, which places them between a mask edge and its threshold line.
func (c *Classifier) within(l l1segments.LineSegment, e l2roi.LineEquation) bool {
	return float64(l.Y1) < e.YAt(float64(l.X1)) &&
		float64(l.Y2) < e.YAt(float64(l.X2))
}
