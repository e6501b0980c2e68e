package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	DB *sql.DB
}

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One short-lived process at a time; a single connection avoids SQLITE_BUSY
	// between our own statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func runMigrations(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  query_user TEXT NOT NULL,
  owner_user TEXT NOT NULL,
  lower_bound TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  job_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS job_history (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  job_id TEXT NOT NULL,
  name TEXT NOT NULL,
  user TEXT NOT NULL,
  state TEXT NOT NULL CHECK (state IN ('COMPLETED','FAILED','CANCELLED','TIMEOUT','OUT_OF_MEMORY','NODE_FAIL','PREEMPTED','UNKNOWN')),
  raw_state TEXT NOT NULL,
  start_time TEXT,
  end_time TEXT,
  exit_code INTEGER,
  PRIMARY KEY (run_id, job_id)
);

CREATE INDEX IF NOT EXISTS idx_job_history_end ON job_history(end_time);
CREATE INDEX IF NOT EXISTS idx_job_history_state ON job_history(state);
`
	_, err := db.Exec(schema)
	return err
}
