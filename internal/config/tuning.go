package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// TuningConfig holds the detector tuning parameters. Every field is optional;
// the Get* accessors fall back to built-in defaults, so partial files are
// safe.
type TuningConfig struct {
	// Region of interest
	ImageWidth      *int `json:"image_width,omitempty"`
	ImageHeight     *int `json:"image_height,omitempty"`
	RoiTopHeight    *int `json:"roi_top_height,omitempty"`
	RoiBottomHeight *int `json:"roi_bottom_height,omitempty"`
	RoiTopWidth     *int `json:"roi_top_width,omitempty"`
	RoiBottomWidth  *int `json:"roi_bottom_width,omitempty"`

	// Line classifier
	HorizontalGradient  *float64 `json:"horizontal_gradient,omitempty"`
	HorizontalMinLength *float64 `json:"horizontal_min_length,omitempty"`
	BoundaryBand        *float64 `json:"boundary_band,omitempty"`
	EdgeBuffer          *float64 `json:"edge_buffer,omitempty"`

	// Smoothing
	GiveWayThreshold   *int     `json:"give_way_threshold,omitempty"`
	GiveWayWindow      *int     `json:"give_way_window,omitempty"`
	SolidLineThreshold *float64 `json:"solid_line_threshold,omitempty"`
	LineTypeWindow     *int     `json:"line_type_window,omitempty"`
	DrivingStateWindow *int     `json:"driving_state_window,omitempty"`

	// Geometry
	ClampDistance       *float64 `json:"clamp_distance,omitempty"`
	ChangingLanesFrames *int     `json:"changing_lanes_frames,omitempty"`

	// Feed
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "30s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with every field nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		ImageWidth:          ptrInt(1920),
		ImageHeight:         ptrInt(1080),
		RoiTopHeight:        ptrInt(660),
		RoiBottomHeight:     ptrInt(840),
		RoiTopWidth:         ptrInt(200),
		RoiBottomWidth:      ptrInt(900),
		HorizontalGradient:  ptrFloat64(0.15),
		HorizontalMinLength: ptrFloat64(50),
		BoundaryBand:        ptrFloat64(1),
		EdgeBuffer:          ptrFloat64(1),
		GiveWayThreshold:    ptrInt(10),
		GiveWayWindow:       ptrInt(10),
		SolidLineThreshold:  ptrFloat64(75),
		LineTypeWindow:      ptrInt(10),
		DrivingStateWindow:  ptrInt(10),
		ClampDistance:       ptrFloat64(200),
		ChangingLanesFrames: ptrInt(10),
		StatsInterval:       ptrString("1m"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. It panics if the file cannot be loaded and is
// intended for tests.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Cross-field ROI checks happen
// when the region is built.
func (c *TuningConfig) Validate() error {
	positiveInts := []struct {
		name string
		v    *int
	}{
		{"image_width", c.ImageWidth},
		{"image_height", c.ImageHeight},
		{"roi_top_width", c.RoiTopWidth},
		{"roi_bottom_width", c.RoiBottomWidth},
		{"give_way_window", c.GiveWayWindow},
		{"line_type_window", c.LineTypeWindow},
		{"driving_state_window", c.DrivingStateWindow},
		{"changing_lanes_frames", c.ChangingLanesFrames},
	}
	for _, f := range positiveInts {
		if f.v != nil && *f.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, f.name, *f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"horizontal_gradient", c.HorizontalGradient},
		{"horizontal_min_length", c.HorizontalMinLength},
		{"boundary_band", c.BoundaryBand},
		{"edge_buffer", c.EdgeBuffer},
		{"solid_line_threshold", c.SolidLineThreshold},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %f", ErrInvalidConfig, f.name, *f.v)
		}
	}

	if c.ClampDistance != nil && *c.ClampDistance <= 0 {
		return fmt.Errorf("%w: clamp_distance must be positive, got %f", ErrInvalidConfig, *c.ClampDistance)
	}
	if c.GiveWayThreshold != nil && *c.GiveWayThreshold < 0 {
		return fmt.Errorf("%w: give_way_threshold must be non-negative, got %d", ErrInvalidConfig, *c.GiveWayThreshold)
	}
	if c.RoiTopHeight != nil && c.RoiBottomHeight != nil && *c.RoiTopHeight >= *c.RoiBottomHeight {
		return fmt.Errorf("%w: roi_top_height %d must be less than roi_bottom_height %d", ErrInvalidConfig, *c.RoiTopHeight, *c.RoiBottomHeight)
	}
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		if _, err := time.ParseDuration(*c.StatsInterval); err != nil {
			return fmt.Errorf("%w: invalid stats_interval '%s': %v", ErrInvalidConfig, *c.StatsInterval, err)
		}
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GetImageWidth returns image_width or 1920.
func (c *TuningConfig) GetImageWidth() int { return intOr(c.ImageWidth, 1920) }

// GetImageHeight returns image_height or 1080.
func (c *TuningConfig) GetImageHeight() int { return intOr(c.ImageHeight, 1080) }

// GetRoiTopHeight returns roi_top_height or 660.
func (c *TuningConfig) GetRoiTopHeight() int { return intOr(c.RoiTopHeight, 660) }

// GetRoiBottomHeight returns roi_bottom_height or 840.
func (c *TuningConfig) GetRoiBottomHeight() int { return intOr(c.RoiBottomHeight, 840) }

// GetRoiTopWidth returns roi_top_width or 200.
func (c *TuningConfig) GetRoiTopWidth() int { return intOr(c.RoiTopWidth, 200) }

// GetRoiBottomWidth returns roi_bottom_width or 900.
func (c *TuningConfig) GetRoiBottomWidth() int { return intOr(c.RoiBottomWidth, 900) }

// GetHorizontalGradient returns horizontal_gradient or 0.15.
func (c *TuningConfig) GetHorizontalGradient() float64 {
	return floatOr(c.HorizontalGradient, 0.15)
}

// GetHorizontalMinLength returns horizontal_min_length or 50.
func (c *TuningConfig) GetHorizontalMinLength() float64 {
	return floatOr(c.HorizontalMinLength, 50)
}

// GetBoundaryBand returns boundary_band or 1.
func (c *TuningConfig) GetBoundaryBand() float64 { return floatOr(c.BoundaryBand, 1) }

// GetEdgeBuffer returns edge_buffer or 1.
func (c *TuningConfig) GetEdgeBuffer() float64 { return floatOr(c.EdgeBuffer, 1) }

// GetGiveWayThreshold returns give_way_threshold or 10.
func (c *TuningConfig) GetGiveWayThreshold() int { return intOr(c.GiveWayThreshold, 10) }

// GetGiveWayWindow returns give_way_window or 10.
func (c *TuningConfig) GetGiveWayWindow() int { return intOr(c.GiveWayWindow, 10) }

// GetSolidLineThreshold returns solid_line_threshold or 75.
func (c *TuningConfig) GetSolidLineThreshold() float64 {
	return floatOr(c.SolidLineThreshold, 75)
}

// GetLineTypeWindow returns line_type_window or 10.
func (c *TuningConfig) GetLineTypeWindow() int { return intOr(c.LineTypeWindow, 10) }

// GetDrivingStateWindow returns driving_state_window or 10.
func (c *TuningConfig) GetDrivingStateWindow() int { return intOr(c.DrivingStateWindow, 10) }

// GetClampDistance returns clamp_distance or 200.
func (c *TuningConfig) GetClampDistance() float64 { return floatOr(c.ClampDistance, 200) }

// GetChangingLanesFrames returns changing_lanes_frames or 10.
func (c *TuningConfig) GetChangingLanesFrames() int { return intOr(c.ChangingLanesFrames, 10) }

// GetStatsInterval parses stats_interval, defaulting to one minute.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil {
		return time.Minute
	}
	return d
}
