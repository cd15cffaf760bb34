package serialmux

import (
	"sync/atomic"

	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/monitoring"
)

// GuidanceWriter is a pipeline.Sink that writes one guidance line per frame
// to the display. Write failures are logged and counted, never returned,
// so a disconnected display cannot stall detection.
type GuidanceWriter struct {
	mux     SerialMuxInterface
	display *DisplayMonitor
	written atomic.Int64
	failed  atomic.Int64
}

// NewGuidanceWriter writes to mux. display may be nil.
func NewGuidanceWriter(mux SerialMuxInterface, display *DisplayMonitor) *GuidanceWriter {
	return &GuidanceWriter{mux: mux, display: display}
}

func (g *GuidanceWriter) HandleResult(res pipeline.Result) {
	line := FormatGuidance(res)
	if err := g.mux.SendCommand(line); err != nil {
		n := g.failed.Add(1)
		if g.display != nil {
			g.display.recordWriteFailure()
		}
		// The first failure and every hundredth after it are logged.
		if n == 1 || n%100 == 0 {
			monitoring.Logf("[display] warning: frame %d: %v (%d failures)", res.Frame, err, n)
		}
		return
	}
	g.written.Add(1)
}

// Counts reports lines written and write failures.
func (g *GuidanceWriter) Counts() (written, failed int64) {
	return g.written.Load(), g.failed.Load()
}

var _ pipeline.Sink = (*GuidanceWriter)(nil)
