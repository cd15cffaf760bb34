//go:build gocv

package extract

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
)

// HoughExtractor reads a video file and finds straight edges inside the
// region of interest with Canny followed by the probabilistic Hough
// transform. It is not safe for concurrent use.
type HoughExtractor struct {
	capture *gocv.VideoCapture
	params  HoughParams
	size    image.Point
	corners []image.Point

	frame  gocv.Mat
	sized  gocv.Mat
	mask   gocv.Mat
	masked gocv.Mat
	gray   gocv.Mat
	edges  gocv.Mat
	lines  gocv.Mat

	number uint64
}

// NewHoughExtractor opens path. Frames are resized to the region's image
// size before masking.
func NewHoughExtractor(path string, roi *l2roi.Region, params HoughParams) (*HoughExtractor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	cfg := roi.Config()
	c := roi.Corners()
	return &HoughExtractor{
		capture: capture,
		params:  params,
		size:    image.Pt(cfg.ImageWidth, cfg.ImageHeight),
		corners: c[:],
		frame:   gocv.NewMat(),
		sized:   gocv.NewMat(),
		mask:    gocv.NewMat(),
		masked:  gocv.NewMat(),
		gray:    gocv.NewMat(),
		edges:   gocv.NewMat(),
		lines:   gocv.NewMat(),
	}, nil
}

// Next decodes the next video frame and returns its line segments. The
// frame timestamp is the capture position.
func (h *HoughExtractor) Next() (l1segments.Frame, error) {
	if ok := h.capture.Read(&h.frame); !ok || h.frame.Empty() {
		return l1segments.Frame{}, io.EOF
	}
	h.number++

	src := h.frame
	if h.frame.Cols() != h.size.X || h.frame.Rows() != h.size.Y {
		gocv.Resize(h.frame, &h.sized, h.size, 0, 0, gocv.InterpolationLinear)
		src = h.sized
	}

	if h.mask.Empty() || h.mask.Type() != src.Type() {
		h.mask.Close()
		h.mask = roiMask(h.size, h.corners, src.Type())
	}
	gocv.BitwiseAnd(h.mask, src, &h.masked)
	gocv.CvtColor(h.masked, &h.gray, gocv.ColorBGRToGray)
	gocv.Canny(h.gray, &h.edges, h.params.CannyLow, h.params.CannyHigh)
	gocv.HoughLinesPWithParams(h.edges, &h.lines, h.params.Rho, h.params.Theta,
		h.params.Threshold, h.params.MinLineLength, h.params.MaxLineGap)

	f := l1segments.Frame{
		Number:    h.number,
		Timestamp: time.Unix(0, 0).Add(time.Duration(h.capture.Get(gocv.VideoCapturePosMsec) * float64(time.Millisecond))),
		Lines:     make([]l1segments.LineSegment, 0, h.lines.Rows()),
	}
	for i := 0; i < h.lines.Rows(); i++ {
		v := h.lines.GetVeciAt(i, 0)
		f.Lines = append(f.Lines, l1segments.Seg(int(v[0]), int(v[1]), int(v[2]), int(v[3])))
	}
	return f, nil
}

// roiMask returns a size.X by size.Y mask that is white inside the polygon
// and black everywhere else.
func roiMask(size image.Point, corners []image.Point, typ gocv.MatType) gocv.Mat {
	mask := gocv.Zeros(size.Y, size.X, typ)
	poly := gocv.NewPointsVectorFromPoints([][]image.Point{corners})
	defer poly.Close()
	gocv.FillPoly(&mask, poly, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return mask
}

func (h *HoughExtractor) Close() error {
	for _, m := range []*gocv.Mat{&h.frame, &h.sized, &h.mask, &h.masked, &h.gray, &h.edges, &h.lines} {
		m.Close()
	}
	return h.capture.Close()
}

// Available reports whether video extraction was compiled in.
func Available() bool { return true }
