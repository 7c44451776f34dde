package store

import (
	"database/sql"
	"time"
)

// ModeEvent records a tracking mode transition.
type ModeEvent struct {
	ID        int64     `json:"id"`
	Previous  string    `json:"previous"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// ModeEventRepository provides access to the mode change log.
type ModeEventRepository struct {
	db *sql.DB
}

// ModeEvents returns the mode event repository for this store.
func (s *Store) ModeEvents() *ModeEventRepository {
	return &ModeEventRepository{db: s.db}
}

// Create appends an event and fills in its ID and CreatedAt.
func (r *ModeEventRepository) Create(e *ModeEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO mode_events (previous, mode, created_at) VALUES (?, ?, ?)`,
		e.Previous, e.Mode, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// List returns the most recent events first, at most limit of them.
// A limit of zero or less returns every event.
func (r *ModeEventRepository) List(limit int) ([]*ModeEvent, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, previous, mode, created_at FROM mode_events
		 ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*ModeEvent
	for rows.Next() {
		e := &ModeEvent{}
		if err := rows.Scan(&e.ID, &e.Previous, &e.Mode, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
