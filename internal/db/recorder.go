package db

import (
	"fmt"
	"sync"

	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
	"github.com/banshee-data/lanekeep/internal/monitoring"
	"github.com/banshee-data/lanekeep/internal/timeutil"
)

// Recorder stores every pipeline.Result of one session. It implements
// pipeline.Sink; write failures are logged and counted, never returned.
type Recorder struct {
	db        *DB
	sessionID string
	clock     timeutil.Clock

	mu       sync.Mutex
	written  int
	failures int
}

// NewRecorder returns a Recorder writing into sessionID. A nil clock uses
// the system clock.
func (db *DB) NewRecorder(sessionID string, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: db, sessionID: sessionID, clock: clock}
}

// HandleResult writes the frame result and its processing time in one
// transaction.
func (r *Recorder) HandleResult(res pipeline.Result) {
	err := r.write(res)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures++
		monitoring.Logf("[db] frame %d not recorded: %v", res.Frame, err)
		return
	}
	r.written++
}

func (r *Recorder) write(res pipeline.Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertFrameResult(tx, NewFrameResult(r.sessionID, res, r.clock.Now())); err != nil {
		return err
	}
	if err := insertFrameTime(tx, r.sessionID, res.Frame, res.ProcessingMs); err != nil {
		return err
	}
	return tx.Commit()
}

// Counts returns how many frames were written and how many failed.
func (r *Recorder) Counts() (written, failures int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.failures
}
