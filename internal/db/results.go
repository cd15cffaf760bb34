package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/lanekeep/internal/lane/l3buckets"
	"github.com/banshee-data/lanekeep/internal/lane/l5state"
	"github.com/banshee-data/lanekeep/internal/lane/pipeline"
)

// FrameResult is the stored summary of one pipeline.Result.
type FrameResult struct {
	SessionID         string               `json:"session_id"`
	FrameNumber       uint64               `json:"frame"`
	State             l5state.DrivingState `json:"state"`
	GiveWay           bool                 `json:"give_way"`
	Difference        *float64             `json:"difference,omitempty"`
	TurningPercentage *int                 `json:"turning_percentage,omitempty"`
	Hint              string               `json:"hint,omitempty"`
	OverlayPresent    bool                 `json:"overlay_present"`
	LeftCount         int                  `json:"left_count"`
	MiddleCount       int                  `json:"middle_count"`
	RightCount        int                  `json:"right_count"`
	HorizontalCount   int                  `json:"horizontal_count"`
	CreatedAt         time.Time            `json:"created_at"`
}

// NewFrameResult flattens res for storage.
func NewFrameResult(sessionID string, res pipeline.Result, createdAt time.Time) FrameResult {
	fr := FrameResult{
		SessionID:       sessionID,
		FrameNumber:     res.Frame,
		State:           res.State,
		GiveWay:         res.GiveWay,
		Hint:            res.Hint,
		OverlayPresent:  res.Overlay != nil,
		LeftCount:       res.Buckets[l3buckets.PositionLeft].Count,
		MiddleCount:     res.Buckets[l3buckets.PositionMiddle].Count,
		RightCount:      res.Buckets[l3buckets.PositionRight].Count,
		HorizontalCount: res.HorizontalCount,
		CreatedAt:       createdAt,
	}
	if res.Turning != nil {
		d, p := res.Turning.Difference, res.Turning.Percentage
		fr.Difference = &d
		fr.TurningPercentage = &p
	}
	return fr
}

// InsertFrameResult stores fr, replacing any earlier row for the same frame.
func (db *DB) InsertFrameResult(fr FrameResult) error {
	return insertFrameResult(db.DB, fr)
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertFrameResult(ex execer, fr FrameResult) error {
	var diff sql.NullFloat64
	if fr.Difference != nil {
		diff = sql.NullFloat64{Float64: *fr.Difference, Valid: true}
	}
	var pct sql.NullInt64
	if fr.TurningPercentage != nil {
		pct = sql.NullInt64{Int64: int64(*fr.TurningPercentage), Valid: true}
	}
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO frame_results (
			session_id, frame_number, driving_state, give_way, difference,
			turning_percentage, hint, overlay_present, left_count, middle_count,
			right_count, horizontal_count, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fr.SessionID, int64(fr.FrameNumber), int(fr.State), fr.GiveWay, diff,
		pct, fr.Hint, fr.OverlayPresent, fr.LeftCount, fr.MiddleCount,
		fr.RightCount, fr.HorizontalCount, fr.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert frame result: %w", err)
	}
	return nil
}

// ListFrameResults returns up to limit results for sessionID in frame
// order, starting at frame fromFrame. A non-positive limit returns all.
func (db *DB) ListFrameResults(sessionID string, fromFrame uint64, limit int) ([]FrameResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT session_id, frame_number, driving_state, give_way, difference,
			turning_percentage, hint, overlay_present, left_count, middle_count,
			right_count, horizontal_count, created_at_ns
		 FROM frame_results
		 WHERE session_id = ? AND frame_number >= ?
		 ORDER BY frame_number ASC LIMIT ?`,
		sessionID, int64(fromFrame), limit)
	if err != nil {
		return nil, fmt.Errorf("list frame results: %w", err)
	}
	defer rows.Close()

	var out []FrameResult
	for rows.Next() {
		var (
			fr        FrameResult
			frame     int64
			state     int
			diff      sql.NullFloat64
			pct       sql.NullInt64
			createdNs int64
		)
		if err := rows.Scan(
			&fr.SessionID, &frame, &state, &fr.GiveWay, &diff,
			&pct, &fr.Hint, &fr.OverlayPresent, &fr.LeftCount, &fr.MiddleCount,
			&fr.RightCount, &fr.HorizontalCount, &createdNs,
		); err != nil {
			return nil, fmt.Errorf("scan frame result: %w", err)
		}
		fr.FrameNumber = uint64(frame)
		fr.State = l5state.DrivingState(state)
		if diff.Valid {
			d := diff.Float64
			fr.Difference = &d
		}
		if pct.Valid {
			p := int(pct.Int64)
			fr.TurningPercentage = &p
		}
		fr.CreatedAt = time.Unix(0, createdNs).UTC()
		out = append(out, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StateHistogram counts stored frames per driving state for sessionID.
// States with no frames are absent from the map.
func (db *DB) StateHistogram(sessionID string) (map[l5state.DrivingState]int, error) {
	rows, err := db.Query(
		`SELECT driving_state, COUNT(*) FROM frame_results
		 WHERE session_id = ? GROUP BY driving_state`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("state histogram: %w", err)
	}
	defer rows.Close()

	hist := make(map[l5state.DrivingState]int)
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state histogram: %w", err)
		}
		hist[l5state.DrivingState(state)] = n
	}
	return hist, rows.Err()
}

// InsertFrameTime stores how long frame took to process, in milliseconds.
func (db *DB) InsertFrameTime(sessionID string, frame uint64, ms float64) error {
	return insertFrameTime(db.DB, sessionID, frame, ms)
}

func insertFrameTime(ex execer, sessionID string, frame uint64, ms float64) error {
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO frame_times (session_id, frame_number, frame_time_ms, unit)
		 VALUES (?, ?, ?, 'ms')`,
		sessionID, int64(frame), ms)
	if err != nil {
		return fmt.Errorf("insert frame time: %w", err)
	}
	return nil
}

// ListFrameTimes returns every stored frame time for sessionID in frame
// order, in milliseconds.
func (db *DB) ListFrameTimes(sessionID string) ([]float64, error) {
	rows, err := db.Query(
		`SELECT frame_time_ms FROM frame_times WHERE session_id = ? ORDER BY frame_number ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list frame times: %w", err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var ms float64
		if err := rows.Scan(&ms); err != nil {
			return nil, fmt.Errorf("scan frame time: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
