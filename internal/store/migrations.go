package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Stream sessions table - one row per finished video feed response
		`CREATE TABLE IF NOT EXISTS stream_sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK(mode IN ('face_tracking', 'object_tracking')),
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			faces INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,

		// Mode events table - every tracking mode transition
		`CREATE TABLE IF NOT EXISTS mode_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			previous TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_stream_sessions_started_at ON stream_sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_mode_events_created_at ON mode_events(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
