package l6geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
)

// Turn hints reported while changing lanes.
const (
	HintTurningLeft  = "currently turning left"
	HintTurningRight = "currently turning right"
	HintNotTurning   = "currently not turning"
)

// Config holds the geometry thresholds.
type Config struct {
	// ClampDistance bounds the left/right distance difference (px) before
	// it is normalised to [-1, 1].
	ClampDistance float64 `json:"clamp_distance"`
	// ChangingLanesFrames is how many frames with middle markings pass
	// between turn-direction comparisons.
	ChangingLanesFrames int `json:"changing_lanes_frames"`
}

// DefaultConfig returns a 200px clamp and a 10 frame comparison interval.
func DefaultConfig() Config {
	return Config{ClampDistance: 200, ChangingLanesFrames: 10}
}

// Polygon is the lane overlay, clockwise from the top left.
type Polygon [4]image.Point

// EdgeFit summarises one bucket against its mask edge.
type EdgeFit struct {
	// Line is the mean of the segments' own slope/intercept pairs.
	Line l2roi.LineEquation `json:"line"`
	// Distance is the mean horizontal distance of the segments' endpoints
	// from the mask edge.
	Distance float64 `json:"distance"`
	// MinY is the smallest endpoint y, or +Inf for an empty bucket.
	MinY  float64 `json:"-"`
	Count int     `json:"count"`
}

// Turning is the within-lane steering guidance.
type Turning struct {
	// Difference is the clamped left/right distance difference scaled to
	// [-1, 1]; negative means the vehicle sits right of centre.
	Difference float64 `json:"difference"`
	// Percentage carries the sign of Difference.
	Percentage int    `json:"percentage"`
	Text       string `json:"text"`
}

// Guidance is the geometry output for one frame. Fields that do not apply
// to the frame's state are nil or empty.
type Guidance struct {
	State   l5state.DrivingState `json:"state"`
	Turning *Turning             `json:"turning,omitempty"`
	Hint    string               `json:"hint,omitempty"`
	Overlay *Polygon             `json:"overlay,omitempty"`
	Left    *EdgeFit             `json:"left_fit,omitempty"`
	Right   *EdgeFit             `json:"right_fit,omitempty"`
}

// ChangingLaneTracker remembers the middle-marking offset across a
// comparison interval. It is reset to zero whenever the state is not
// ChangingLanes.
type ChangingLaneTracker struct {
	Snapshot float64 `json:"snapshot"`
	Counter  int     `json:"counter"`
}

// Engine runs the per-state geometry. It carries the changing-lane tracker
// across frames, so it is long-lived for a detection session and not safe
// for concurrent use.
type Engine struct {
	roi     *l2roi.Region
	cfg     Config
	tracker ChangingLaneTracker
	hint    string
}

// NewEngine returns an Engine for roi.
func NewEngine(roi *l2roi.Region, cfg Config) (*Engine, error) {
	if cfg.ClampDistance <= 0 {
		return nil, fmt.Errorf("clamp distance must be positive, got %v", cfg.ClampDistance)
	}
	if cfg.ChangingLanesFrames <= 0 {
		return nil, fmt.Errorf("changing lanes frames must be positive, got %d", cfg.ChangingLanesFrames)
	}
	return &Engine{roi: roi, cfg: cfg}, nil
}

// Tracker returns the current changing-lane tracker.
func (e *Engine) Tracker() ChangingLaneTracker { return e.tracker }

// Update computes the guidance for state using the frame's buckets.
func (e *Engine) Update(state l5state.DrivingState, set *l3buckets.ClassifiedLineSet) Guidance {
	g := Guidance{State: state}

	switch state {
	case l5state.WithinLanes:
		e.resetTracker()
		// Guidance needs both edges; the seeded state can be WithinLanes
		// before any marking has been seen.
		if set.Empty(l3buckets.PositionLeft) || set.Empty(l3buckets.PositionRight) {
			break
		}
		left := fitEdge(set.Left, e.roi.LeftEdge())
		right := fitEdge(set.Right, e.roi.RightEdge())
		g.Left, g.Right = &left, &right
		g.Turning = e.turning(left.Distance - right.Distance)
		g.Overlay = e.overlay(left, right)

	case l5state.ChangingLanes:
		e.updateChangingLanes(set.Middle)
		g.Hint = e.hint

	default:
		e.resetTracker()
	}
	return g
}

func (e *Engine) resetTracker() {
	e.tracker = ChangingLaneTracker{}
	e.hint = ""
}

func (e *Engine) turning(raw float64) *Turning {
	limit := e.cfg.ClampDistance
	d := math.Max(-limit, math.Min(limit, raw)) / limit

	pct := int(math.Mod(d*100-math.Floor(d)*100, 10))
	t := &Turning{Difference: d}
	switch {
	case d < 0:
		t.Percentage = -pct
		t.Text = fmt.Sprintf("turn left %d%%", pct)
	case d > 0:
		t.Percentage = pct
		t.Text = fmt.Sprintf("turn right %d%%", pct)
	default:
		t.Text = "centered"
	}
	return t
}

// overlay returns the lane polygon between the two averaged edge lines, or
// nil when either line is flat or the lines cross inside the drawn region.
func (e *Engine) overlay(left, right EdgeFit) *Polygon {
	mL, cL := left.Line.M, left.Line.C
	mR, cR := right.Line.M, right.Line.C
	if mL == 0 || mR == 0 || mL == mR {
		return nil
	}

	bottom := e.roi.BottomHeight()
	minY := math.Min(math.Min(left.MinY, right.MinY), bottom)

	intersectY := (mR*cL - mL*cR) / (mR - mL)
	if !(intersectY < minY) {
		return nil
	}

	return &Polygon{
		image.Pt(int(left.Line.XAt(minY)), int(minY)),
		image.Pt(int(right.Line.XAt(minY)), int(minY)),
		image.Pt(int(right.Line.XAt(bottom)), int(bottom)),
		image.Pt(int(left.Line.XAt(bottom)), int(bottom)),
	}
}

func (e *Engine) updateChangingLanes(middle []l1segments.LineSegment) {
	if len(middle) == 0 {
		return
	}
	current := averageDistance(middle, e.roi.LeftEdge()) - averageDistance(middle, e.roi.RightEdge())

	if e.tracker.Counter == 0 {
		e.tracker.Snapshot = current
	}
	e.tracker.Counter++

	if e.tracker.Counter < e.cfg.ChangingLanesFrames {
		return
	}
	switch {
	case current < e.tracker.Snapshot:
		e.hint = HintTurningLeft
	case current > e.tracker.Snapshot:
		e.hint = HintTurningRight
	default:
		e.hint = HintNotTurning
	}
	if current != 0 {
		e.tracker.Snapshot = current
	}
	e.tracker.Counter = 0
}

// fitEdge measures lines against edge and averages their own line
// equations. An empty bucket yields a zero fit with MinY at +Inf.
func fitEdge(lines []l1segments.LineSegment, edge l2roi.LineEquation) EdgeFit {
	fit := EdgeFit{MinY: math.Inf(1), Count: len(lines)}
	if len(lines) == 0 {
		return fit
	}

	var dist, m, c float64
	for _, l := range lines {
		dist += endpointDistance(l, edge)
		fit.MinY = math.Min(fit.MinY, math.Min(float64(l.Y1), float64(l.Y2)))

		lm := l.DeltaY() / l.DeltaX()
		m += lm
		c += float64(l.Y1) - lm*float64(l.X1)
	}
	n := float64(len(lines))
	fit.Distance = dist / n
	fit.Line = l2roi.LineEquation{M: m / n, C: c / n}
	return fit
}

func averageDistance(lines []l1segments.LineSegment, edge l2roi.LineEquation) float64 {
	if len(lines) == 0 {
		return 0
	}
	var dist float64
	for _, l := range lines {
		dist += endpointDistance(l, edge)
	}
	return dist / float64(len(lines))
}

// endpointDistance sums, over both endpoints, the horizontal distance from
// the endpoint to edge at the endpoint's own y.
func endpointDistance(l l1segments.LineSegment, edge l2roi.LineEquation) float64 {
	return math.Abs(float64(l.X1)-edge.XAt(float64(l.Y1))) +
		math.Abs(float64(l.X2)-edge.XAt(float64(l.Y2)))
}
