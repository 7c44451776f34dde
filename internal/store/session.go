package store

import (
	"database/sql"
	"errors"
	"time"
)

// StreamSession is the record of one finished video feed.
type StreamSession struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Frames    int       `json:"frames"`
	Faces     int       `json:"faces"`
	EndReason string    `json:"end_reason"`
	Error     string    `json:"error,omitempty"`
}

// Duration returns how long the stream was open.
func (s *StreamSession) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// SessionRepository provides access to stream session history.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, mode, started_at, ended_at, frames, faces, end_reason, error`

// Create inserts a finished session.
func (r *SessionRepository) Create(s *StreamSession) error {
	_, err := r.db.Exec(
		`INSERT INTO stream_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Mode, s.StartedAt, s.EndedAt, s.Frames, s.Faces, s.EndReason, s.Error,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*StreamSession, error) {
	s := &StreamSession{}
	err := r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM stream_sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.Mode, &s.StartedAt, &s.EndedAt, &s.Frames, &s.Faces, &s.EndReason, &s.Error)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns the most recent sessions first, at most limit of them.
// A limit of zero or less returns every session.
func (r *SessionRepository) List(limit int) ([]*StreamSession, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM stream_sessions
		 ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*StreamSession
	for rows.Next() {
		s := &StreamSession{}
		if err := rows.Scan(&s.ID, &s.Mode, &s.StartedAt, &s.EndedAt, &s.Frames, &s.Faces, &s.EndReason, &s.Error); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Count returns the number of stored sessions.
func (r *SessionRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM stream_sessions`).Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep sessions and returns how many
// rows were removed.
func (r *SessionRepository) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	result, err := r.db.Exec(
		`DELETE FROM stream_sessions WHERE id NOT IN (
			SELECT id FROM stream_sessions ORDER BY started_at DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
