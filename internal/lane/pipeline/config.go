package pipeline

import (
	"github.com/banshee-data/lanekeep/internal/config"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/l4linetype"
	"github.com/banshee-data/lanekeep/internal/lane/l6geometry"
)

// Config gathers the per-layer settings a Detector is built from.
type Config struct {
	ROI              l2roi.Config               `json:"roi"`
	Classifier       l3buckets.ClassifierConfig `json:"classifier"`
	GiveWayThreshold int                        `json:"give_way_threshold"`
	GiveWayWindow    int                        `json:"give_way_window"`
	LineType         l4linetype.Config          `json:"line_type"`
	StateWindow      int                        `json:"state_window"`
	Geometry         l6geometry.Config          `json:"geometry"`
}

// DefaultConfig returns the settings for 1920x1080 dash-cam footage.
func DefaultConfig() Config {
	return Config{
		ROI:              l2roi.DefaultConfig(),
		Classifier:       l3buckets.DefaultClassifierConfig(),
		GiveWayThreshold: 10,
		GiveWayWindow:    10,
		LineType:         l4linetype.DefaultConfig(),
		StateWindow:      10,
		Geometry:         l6geometry.DefaultConfig(),
	}
}

// ConfigFromTuning maps a tuning file onto a Config. Keys missing from the
// file take their built-in defaults.
func ConfigFromTuning(t *config.TuningConfig) Config {
	if t == nil {
		t = config.EmptyTuningConfig()
	}
	return Config{
		ROI: l2roi.Config{
			ImageWidth:   t.GetImageWidth(),
			ImageHeight:  t.GetImageHeight(),
			TopHeight:    t.GetRoiTopHeight(),
			BottomHeight: t.GetRoiBottomHeight(),
			TopWidth:     t.GetRoiTopWidth(),
			BottomWidth:  t.GetRoiBottomWidth(),
		},
		Classifier: l3buckets.ClassifierConfig{
			HorizontalGradient:  t.GetHorizontalGradient(),
			HorizontalMinLength: t.GetHorizontalMinLength(),
			BoundaryBand:        t.GetBoundaryBand(),
			EdgeBuffer:          t.GetEdgeBuffer(),
		},
		GiveWayThreshold: t.GetGiveWayThreshold(),
		GiveWayWindow:    t.GetGiveWayWindow(),
		LineType: l4linetype.Config{
			SolidThreshold: t.GetSolidLineThreshold(),
			Window:         t.GetLineTypeWindow(),
		},
		StateWindow: t.GetDrivingStateWindow(),
		Geometry: l6geometry.Config{
			ClampDistance:       t.GetClampDistance(),
			ChangingLanesFrames: t.GetChangingLanesFrames(),
		},
	}
}
