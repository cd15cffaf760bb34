package l3buckets

import "github.com/banshee-data/lanekeep/internal/lane/rolling"

// GiveWayDetector smooths the per-frame horizontal segment count into a
// give-way (stop line) warning. It is long-lived for a detection session.
type GiveWayDetector struct {
	threshold int
	filter    *rolling.MajorityFilter[int]
}

// NewGiveWayDetector warns once more than threshold horizontal segments
// have been seen in the majority of the last window frames.
func NewGiveWayDetector(threshold, window int) (*GiveWayDetector, error) {
	f, err := rolling.New[int](window, 2)
	if err != nil {
		return nil, err
	}
	return &GiveWayDetector{threshold: threshold, filter: f}, nil
}

// Update pushes this frame's horizontal count and returns the smoothed
// warning.
func (d *GiveWayDetector) Update(horizontalCount int) bool {
	seen := 0
	if horizontalCount > d.threshold {
		seen = 1
	}
	return d.filter.Push(seen) == 1
}
