package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the detector over a single frame source.
type Session struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// CreateSession stores a new session starting at startedAt. cfg is
// marshalled as the session's configuration record and may be nil.
func (db *DB) CreateSession(source string, startedAt time.Time, cfg interface{}) (*Session, error) {
	raw := json.RawMessage("{}")
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal session config: %w", err)
		}
		raw = b
	}

	s := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: startedAt,
		Config:    raw,
	}
	_, err := db.Exec(
		`INSERT INTO sessions (id, source, started_at_ns, config_json) VALUES (?, ?, ?, ?)`,
		s.ID, s.Source, startedAt.UnixNano(), string(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

// EndSession records endedAt for id.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at_ns = ? WHERE id = ?`, endedAt.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// GetSession returns the session with id.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(
		`SELECT id, source, started_at_ns, ended_at_ns, config_json FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// ListSessions returns up to limit sessions, newest first. A non-positive
// limit returns them all.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT id, source, started_at_ns, ended_at_ns, config_json
		 FROM sessions ORDER BY started_at_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s         Session
		startedNs int64
		endedNs   sql.NullInt64
		cfg       string
	)
	if err := row.Scan(&s.ID, &s.Source, &startedNs, &endedNs, &cfg); err != nil {
		return nil, err
	}
	s.StartedAt = time.Unix(0, startedNs).UTC()
	if endedNs.Valid {
		t := time.Unix(0, endedNs.Int64).UTC()
		s.EndedAt = &t
	}
	s.Config = json.RawMessage(cfg)
	return &s, nil
}
