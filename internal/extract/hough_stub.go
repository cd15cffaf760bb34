//go:build !gocv

package extract

import (
	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
)

// HoughExtractor is unavailable without the gocv build tag.
type HoughExtractor struct{}

// NewHoughExtractor always fails with ErrUnavailable in this build.
func NewHoughExtractor(path string, roi *l2roi.Region, params HoughParams) (*HoughExtractor, error) {
	return nil, ErrUnavailable
}

func (h *HoughExtractor) Next() (l1segments.Frame, error) { return l1segments.Frame{}, ErrUnavailable }

func (h *HoughExtractor) Close() error { return nil }

// Available reports whether video extraction was compiled in.
func Available() bool { return false }
