// Package l4linetype turns bucket contents into a smoothed none / dashed /
// solid line type per lane-marking position. The result is for display only
// and never feeds back into the driving-state decision.
package l4linetype

import (
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/rolling"
)

// LineType is the kind of road marking seen at one position.
type LineType int

const (
	None LineType = iota
	Dashed
	Solid

	numLineTypes = 3
)

func (t LineType) String() string {
	switch t {
	case None:
		return "none"
	case Dashed:
		return "dashed"
	case Solid:
		return "solid"
	default:
		return "unknown"
	}
}

// MarshalText encodes the line type by name.
func (t LineType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// HistoryLen is the number of smoothed line types kept for display.
const HistoryLen = 5

// History holds the most recent smoothed line types, newest first.
type History [HistoryLen]LineType

func (h *History) push(t LineType) {
	copy(h[1:], h[:HistoryLen-1])
	h[0] = t
}

// Config sets the dashed/solid split and the smoothing window.
type Config struct {
	SolidThreshold float64 `json:"solid_threshold"`
	Window         int     `json:"window"`
}

// DefaultConfig returns the 75px split with a 10 frame window.
func DefaultConfig() Config {
	return Config{SolidThreshold: 75, Window: 10}
}

// Classifier keeps one filter and one display history per position.
// It is long-lived for a detection session and not safe for concurrent use.
type Classifier struct {
	cfg       Config
	filters   [3]*rolling.MajorityFilter[LineType]
	histories [3]History
}

// NewClassifier returns a Classifier with every history set to None.
func NewClassifier(cfg Config) (*Classifier, error) {
	c := &Classifier{cfg: cfg}
	for i := range c.filters {
		f, err := rolling.New[LineType](cfg.Window, numLineTypes)
		if err != nil {
			return nil, err
		}
		c.filters[i] = f
	}
	return c, nil
}

// Raw returns the unsmoothed line type for position p of set.
func (c *Classifier) Raw(set *l3buckets.ClassifiedLineSet, p l3buckets.Position) LineType {
	switch {
	case set.Empty(p):
		return None
	case set.AverageLength(p) < c.cfg.SolidThreshold:
		return Dashed
	default:
		return Solid
	}
}

// Update smooths each position's raw line type and prepends the result to
// that position's history. It returns the smoothed types.
func (c *Classifier) Update(set *l3buckets.ClassifiedLineSet) [3]LineType {
	var out [3]LineType
	for _, p := range l3buckets.Positions {
		smoothed := c.filters[p].Push(c.Raw(set, p))
		c.histories[p].push(smoothed)
		out[p] = smoothed
	}
	return out
}

// History returns a copy of position p's display history.
func (c *Classifier) History(p l3buckets.Position) History {
	return c.histories[p]
}
