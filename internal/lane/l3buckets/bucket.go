package l3buckets

import "github.com/banshee-data/lanekeep/internal/lane/l1segments"

// Bucket is the single outcome of classifying one segment.
type Bucket int

const (
	// Discarded covers every guard that drops a segment: exclusion boxes,
	// vertical segments, short or boundary horizontals and mask edges.
	Discarded Bucket = iota
	Horizontal
	Left
	Middle
	Right
)

func (b Bucket) String() string {
	switch b {
	case Discarded:
		return "discarded"
	case Horizontal:
		return "horizontal"
	case Left:
		return "left"
	case Middle:
		return "middle"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Position is one of the three lane-marking buckets.
type Position int

const (
	PositionLeft Position = iota
	PositionMiddle
	PositionRight
)

// Positions lists the lane-marking positions in display order.
var Positions = [3]Position{PositionLeft, PositionMiddle, PositionRight}

func (p Position) String() string {
	switch p {
	case PositionLeft:
		return "left"
	case PositionMiddle:
		return "middle"
	case PositionRight:
		return "right"
	default:
		return "unknown"
	}
}

// ClassifiedLineSet is the result of classifying one frame. It is rebuilt
// from scratch for every frame.
type ClassifiedLineSet struct {
	Left   []l1segments.LineSegment
	Middle []l1segments.LineSegment
	Right  []l1segments.LineSegment

	// HorizontalCount counts long near-horizontal segments away from the
	// mask's top and bottom edges.
	HorizontalCount int

	lengthSum [3]float64
}

// Lines returns the segments in bucket p.
func (s *ClassifiedLineSet) Lines(p Position) []l1segments.LineSegment {
	switch p {
	case PositionLeft:
		return s.Left
	case PositionMiddle:
		return s.Middle
	case PositionRight:
		return s.Right
	}
	return nil
}

// Empty reports whether bucket p holds no segments. Check it before trusting
// AverageLength, which is 0 for an empty bucket.
func (s *ClassifiedLineSet) Empty(p Position) bool { return len(s.Lines(p)) == 0 }

// AverageLength returns the mean Euclidean length of the segments in bucket
// p, or 0 when the bucket is empty.
func (s *ClassifiedLineSet) AverageLength(p Position) float64 {
	n := len(s.Lines(p))
	if n == 0 {
		return 0
	}
	return s.lengthSum[p] / float64(n)
}

func (s *ClassifiedLineSet) add(p Position, l l1segments.LineSegment) {
	switch p {
	case PositionLeft:
		s.Left = append(s.Left, l)
	case PositionMiddle:
		s.Middle = append(s.Middle, l)
	case PositionRight:
		s.Right = append(s.Right, l)
	}
	s.lengthSum[p] += l.Length()
}
