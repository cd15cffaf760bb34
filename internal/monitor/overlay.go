package monitor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"strconv"

	"golang.org/x/image/vector"

	"github.com/banshee-data/lanekeep/internal/httputil"
	"github.com/banshee-data/lanekeep/internal/lane/l2roi"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
)

const defaultOverlayScale = 0.5

var (
	overlayBackground = color.RGBA{A: 255}
	overlayMask       = color.RGBA{R: 64, G: 64, B: 64, A: 255}
	overlayLane       = color.RGBA{G: 200, A: 255}
)

// RenderOverlay draws the ROI mask and, when the frame has one, the lane
// polygon at scale times the detector's image size.
func RenderOverlay(roi *l2roi.Region, res pipeline.Result, scale float64) (*image.RGBA, error) {
	if scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("scale must be in (0, 1], got %v", scale)
	}
	cfg := roi.Config()
	w := int(float64(cfg.ImageWidth) * scale)
	h := int(float64(cfg.ImageHeight) * scale)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scale %v leaves an empty image", scale)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(overlayBackground), image.Point{}, draw.Src)

	fillQuad(img, roi.Corners(), scale, overlayMask)
	if res.Overlay != nil {
		fillQuad(img, *res.Overlay, scale, overlayLane)
	}
	return img, nil
}

func fillQuad(dst *image.RGBA, pts [4]image.Point, scale float64, c color.Color) {
	b := dst.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	r.MoveTo(float32(float64(pts[0].X)*scale), float32(float64(pts[0].Y)*scale))
	for _, p := range pts[1:] {
		r.LineTo(float32(float64(p.X)*scale), float32(float64(p.Y)*scale))
	}
	r.ClosePath()
	r.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func (ws *WebServer) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if ws.runner == nil {
		httputil.ServiceUnavailable(w, "detector not running")
		return
	}
	scale := defaultOverlayScale
	if raw := r.URL.Query().Get("scale"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid 'scale' parameter")
			return
		}
		scale = v
	}
	res, ok := ws.runner.Latest()
	if !ok {
		httputil.NotFound(w, "no frames processed yet")
		return
	}
	img, err := RenderOverlay(ws.runner.Detector().Region(), res, scale)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("encode png: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}
