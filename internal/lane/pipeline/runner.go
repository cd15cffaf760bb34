package pipeline

import (
	"sync"
	"time"

	"github.com/banshee-data/lanekeep/internal/lane/l1segments"
	"github.com/banshee-data/lanekeep/internal/perf"
)

// Sink receives every Result in frame order. Sinks are called with the
// runner's lock held and must not call back into the Runner.
type Sink interface {
	HandleResult(Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

// HandleResult calls f(r).
func (f SinkFunc) HandleResult(r Result) { f(r) }

// Runner serialises frames from any number of goroutines through a single
// Detector and keeps a copy of the latest Result for readers.
type Runner struct {
	mu     sync.Mutex
	det    *Detector
	perf   *perf.Tracker
	sinks  []Sink
	latest Result
	frames uint64
}

// NewRunner wraps det. A nil tracker disables frame timing.
func NewRunner(det *Detector, tracker *perf.Tracker) *Runner {
	return &Runner{det: det, perf: tracker}
}

// AddSink registers s for every subsequent frame.
func (r *Runner) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// HandleFrame processes f and fans the Result out to the sinks.
func (r *Runner) HandleFrame(f l1segments.Frame) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.perf != nil {
		r.perf.StartFrame()
	}
	res := r.det.Process(f)
	if r.perf != nil {
		res.ProcessingMs = float64(r.perf.EndFrame()) / float64(time.Millisecond)
	}

	r.latest = res
	r.frames++
	for _, s := range r.sinks {
		s.HandleResult(res)
	}
	return res
}

// Latest returns the most recent Result, or false before the first frame.
func (r *Runner) Latest() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.frames > 0
}

// Frames returns how many frames have been processed.
func (r *Runner) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Perf returns the frame timer, which may be nil.
func (r *Runner) Perf() *perf.Tracker { return r.perf }

// Detector returns the wrapped detector. Callers must not Process frames on
// it directly.
func (r *Runner) Detector() *Detector { return r.det }
