// Package l5state maps per-frame marking presence to one of five driving
// states and smooths it over a window of frames.
package l5state

import (
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/rolling"
)

// DrivingState is the coarse lane-keeping classification for a frame.
type DrivingState int

const (
	WithinLanes DrivingState = iota
	ChangingLanes
	LeftOnly
	RightOnly
	NoMarkings

	numStates = 5
)

func (s DrivingState) String() string {
	switch s {
	case WithinLanes:
		return "within_lanes"
	case ChangingLanes:
		return "changing_lanes"
	case LeftOnly:
		return "left_only"
	case RightOnly:
		return "right_only"
	case NoMarkings:
		return "no_markings"
	default:
		return "unknown"
	}
}

// Title is the status line shown to the driver.
func (s DrivingState) Title() string {
	switch s {
	case WithinLanes:
		return "Within Lanes"
	case ChangingLanes:
		return "WARNING: Changing lanes"
	case LeftOnly:
		return "WARNING: Only left road marking detected"
	case RightOnly:
		return "WARNING: Only right road marking detected"
	case NoMarkings:
		return "WARNING: No road markings detected"
	default:
		return ""
	}
}

// Raw maps bucket presence to a driving state. Every combination is
// covered:
//
//	L M R   state
//	T T T   WithinLanes
//	T F T   WithinLanes
//	F T F   ChangingLanes
//	T T F   ChangingLanes
//	F T T   ChangingLanes
//	T F F   LeftOnly
//	F F T   RightOnly
//	F F F   NoMarkings
func Raw(left, middle, right bool) DrivingState {
	switch {
	case left && right:
		return WithinLanes
	case middle:
		return ChangingLanes
	case left:
		return LeftOnly
	case right:
		return RightOnly
	default:
		return NoMarkings
	}
}

// Machine smooths the raw driving state. It is long-lived for a detection
// session and not safe for concurrent use.
type Machine struct {
	filter *rolling.MajorityFilter[DrivingState]
	last   DrivingState
}

// NewMachine returns a Machine with the given smoothing window.
func NewMachine(window int) (*Machine, error) {
	f, err := rolling.New[DrivingState](window, numStates)
	if err != nil {
		return nil, err
	}
	return &Machine{filter: f}, nil
}

// Update pushes the raw state for set and returns the smoothed state, which
// is authoritative for the frame.
func (m *Machine) Update(set *l3buckets.ClassifiedLineSet) DrivingState {
	raw := Raw(
		!set.Empty(l3buckets.PositionLeft),
		!set.Empty(l3buckets.PositionMiddle),
		!set.Empty(l3buckets.PositionRight),
	)
	m.last = m.filter.Push(raw)
	return m.last
}

// Current returns the most recent smoothed state.
func (m *Machine) Current() DrivingState { return m.last }
