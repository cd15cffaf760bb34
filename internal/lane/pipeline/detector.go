// Package pipeline chains the lane layers into a per-frame detector and
// wraps it in a Runner that can be shared by feeds and readers.
package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/l4linetype"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/lane/l6geometry"
)

// BucketSummary describes one position's segments in a frame.
type BucketSummary struct {
	Count         int     `json:"count"`
	AverageLength float64 `json:"average_length"`
}

// Result is everything the detector reports for one frame.
type Result struct {
	Frame     uint64    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`

	State   l5state.DrivingState `json:"state"`
	Title   string               `json:"title"`
	GiveWay bool                 `json:"give_way"`

	// Histories are indexed by l3buckets.Position, newest first.
	Histories [3]l4linetype.History `json:"histories"`

	Turning *l6geometry.Turning `json:"turning,omitempty"`
	Hint    string              `json:"hint,omitempty"`
	Overlay *l6geometry.Polygon `json:"overlay,omitempty"`

	Buckets         [3]BucketSummary `json:"buckets"`
	HorizontalCount int              `json:"horizontal_count"`

	// ProcessingMs is set by Runner; Process leaves it zero.
	ProcessingMs float64 `json:"processing_ms,omitempty"`
}

// Detector owns the long-lived smoothing state for one detection session:
// the give-way, line-type and driving-state filters, the line-type histories
// and the changing-lane tracker. It is not safe for concurrent use.
type Detector struct {
	cfg        Config
	roi        *l2roi.Region
	classifier *l3buckets.Classifier
	giveWay    *l3buckets.GiveWayDetector
	lineTypes  *l4linetype.Classifier
	states     *l5state.Machine
	geometry   *l6geometry.Engine
}

// NewDetector builds every layer from cfg.
func NewDetector(cfg Config) (*Detector, error) {
	roi, err := l2roi.New(cfg.ROI)
	if err != nil {
		return nil, fmt.Errorf("building region of interest: %w", err)
	}
	giveWay, err := l3buckets.NewGiveWayDetector(cfg.GiveWayThreshold, cfg.GiveWayWindow)
	if err != nil {
		return nil, fmt.Errorf("building give-way detector: %w", err)
	}
	lineTypes, err := l4linetype.NewClassifier(cfg.LineType)
	if err != nil {
		return nil, fmt.Errorf("building line type classifier: %w", err)
	}
	states, err := l5state.NewMachine(cfg.StateWindow)
	if err != nil {
		return nil, fmt.Errorf("building driving state machine: %w", err)
	}
	geometry, err := l6geometry.NewEngine(roi, cfg.Geometry)
	if err != nil {
		return nil, fmt.Errorf("building geometry engine: %w", err)
	}
	return &Detector{
		cfg:        cfg,
		roi:        roi,
		classifier: l3buckets.NewClassifier(roi, cfg.Classifier),
		giveWay:    giveWay,
		lineTypes:  lineTypes,
		states:     states,
		geometry:   geometry,
	}, nil
}

// Config returns the settings the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// Region returns the detector's region of interest.
func (d *Detector) Region() *l2roi.Region { return d.roi }

// Tracker returns the changing-lane tracker after the last frame.
func (d *Detector) Tracker() l6geometry.ChangingLaneTracker { return d.geometry.Tracker() }

// Process runs one frame through every layer. The bucket set is scratch and
// rebuilt each call; everything else carries over to the next frame.
func (d *Detector) Process(f l1segments.Frame) Result {
	set := d.classifier.Classify(f.Lines, f.Boxes)

	res := Result{
		Frame:           f.Number,
		Timestamp:       f.Timestamp,
		GiveWay:         d.giveWay.Update(set.HorizontalCount),
		HorizontalCount: set.HorizontalCount,
	}

	d.lineTypes.Update(&set)
	for _, p := range l3buckets.Positions {
		res.Histories[p] = d.lineTypes.History(p)
		res.Buckets[p] = BucketSummary{
			Count:         len(set.Lines(p)),
			AverageLength: set.AverageLength(p),
		}
	}

	res.State = d.states.Update(&set)
	res.Title = res.State.Title()

	g := d.geometry.Update(res.State, &set)
	res.Turning = g.Turning
	res.Hint = g.Hint
	res.Overlay = g.Overlay
	return res
}
