package serialmux

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// DisplayState is what we know about the display from its replies.
type DisplayState struct {
	Acks       int64         `json:"acks"`
	Errors     int64         `json:"errors"`
	Unknown    int64         `json:"unknown"`
	LastError  string        `json:"last_error,omitempty"`
	Status     *StatusReport `json:"status,omitempty"`
	LastReply  time.Time     `json:"last_reply"`
	WriteFails int64         `json:"write_fails"`
}

// DisplayMonitor tracks DisplayState from the lines fanned out by a mux.
type DisplayMonitor struct {
	mu    sync.Mutex
	state DisplayState
	clock timeutil.Clock
}

func NewDisplayMonitor(clock timeutil.Clock) *DisplayMonitor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &DisplayMonitor{clock: clock}
}

// HandleLine folds one display line into the state.
func (m *DisplayMonitor) HandleLine(line string) {
	reply, err := ParseReply(line)
	if err != nil {
		monitoring.Logf("[display] warning: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastReply = m.clock.Now()
	switch reply.Kind {
	case ReplyAck:
		m.state.Acks++
	case ReplyError:
		m.state.Errors++
		m.state.LastError = reply.Message
		monitoring.Logf("[display] warning: display reported error: %s", reply.Message)
	case ReplyStatus:
		m.state.Status = reply.Status
	default:
		m.state.Unknown++
	}
}

func (m *DisplayMonitor) recordWriteFailure() {
	m.mu.Lock()
	m.state.WriteFails++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *DisplayMonitor) Snapshot() DisplayState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	if s.Status != nil {
		status := *s.Status
		s.Status = &status
	}
	return s
}

// Run subscribes to mux and handles lines until ctx ends or the mux closes
// the subscription.
func (m *DisplayMonitor) Run(ctx context.Context, mux SerialMuxInterface) {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			m.HandleLine(line)
		}
	}
}
