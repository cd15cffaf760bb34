package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lanekeep/internal/fsutil"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
)

// PerfPlotter records per-frame timing and steering samples while a
// session runs and writes them as PNG graphs when it ends. It is a
// pipeline.Sink.
type PerfPlotter struct {
	fs      fsutil.FileSystem
	mu      sync.Mutex
	samples []PerfSample
}

// PerfSample is one frame's plotted values.
type PerfSample struct {
	Frame        uint64
	ProcessingMs float64
	State        int
	// HasDifference is false outside the within-lanes state.
	HasDifference bool
	Difference    float64
}

// NewPerfPlotter writes through fs; nil means the real filesystem.
func NewPerfPlotter(fs fsutil.FileSystem) *PerfPlotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &PerfPlotter{fs: fs}
}

func (pp *PerfPlotter) HandleResult(res pipeline.Result) {
	s := PerfSample{
		Frame:        res.Frame,
		ProcessingMs: res.ProcessingMs,
		State:        int(res.State),
	}
	if res.Turning != nil {
		s.HasDifference = true
		s.Difference = res.Turning.Difference
	}
	pp.mu.Lock()
	pp.samples = append(pp.samples, s)
	pp.mu.Unlock()
}

// Samples returns a copy of what has been recorded.
func (pp *PerfPlotter) Samples() []PerfSample {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	out := make([]PerfSample, len(pp.samples))
	copy(out, pp.samples)
	return out
}

// GeneratePlots writes frame_times.png, driving_state.png and
// lateral_difference.png into outputDir and returns the paths written. The
// lateral plot is skipped when no frame was within lanes.
func (pp *PerfPlotter) GeneratePlots(outputDir string) ([]string, error) {
	samples := pp.Samples()
	if len(samples) == 0 {
		return nil, nil
	}
	if err := pp.fs.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	times := make(plotter.XYs, len(samples))
	states := make(plotter.XYs, len(samples))
	var diffs plotter.XYs
	for i, s := range samples {
		x := float64(s.Frame)
		times[i] = plotter.XY{X: x, Y: s.ProcessingMs}
		states[i] = plotter.XY{X: x, Y: float64(s.State)}
		if s.HasDifference {
			diffs = append(diffs, plotter.XY{X: x, Y: s.Difference})
		}
	}

	var written []string
	plots := []struct {
		file   string
		title  string
		yLabel string
		pts    plotter.XYs
		colour color.Color
	}{
		{"frame_times.png", "Frame processing time", "Time (ms)", times, color.RGBA{R: 31, G: 119, B: 180, A: 255}},
		{"driving_state.png", "Driving state", "State", states, color.RGBA{R: 44, G: 160, B: 44, A: 255}},
		{"lateral_difference.png", "Lateral difference (negative: right of centre)", "Difference", diffs, color.RGBA{R: 214, G: 39, B: 40, A: 255}},
	}
	for _, pl := range plots {
		if len(pl.pts) == 0 {
			continue
		}
		path := filepath.Join(outputDir, pl.file)
		if err := pp.saveLinePlot(path, pl.title, pl.yLabel, pl.pts, pl.colour); err != nil {
			return written, fmt.Errorf("%s: %w", pl.file, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (pp *PerfPlotter) saveLinePlot(path, title, yLabel string, pts plotter.XYs, c color.Color) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	f, err := pp.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write plot: %w", err)
	}
	return f.Close()
}

var _ pipeline.Sink = (*PerfPlotter)(nil)
