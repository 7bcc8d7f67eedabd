// Package persistence provides SQLite storage for finished population runs.
package persistence

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run or agent does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		policy TEXT NOT NULL,
		players INTEGER NOT NULL,
		mean_gpa REAL NOT NULL,
		degenerate INTEGER NOT NULL,
		fallbacks INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		archetype TEXT NOT NULL,
		policy TEXT NOT NULL,
		midterm REAL NOT NULL,
		final REAL NOT NULL,
		total_score REAL NOT NULL,
		grade TEXT NOT NULL,
		gpa REAL NOT NULL,
		knowledge REAL NOT NULL,
		fallbacks INTEGER NOT NULL,
		degenerate INTEGER NOT NULL,
		actions_json TEXT NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS weekly (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		week INTEGER NOT NULL,
		state TEXT NOT NULL,
		action TEXT NOT NULL,
		mood INTEGER NOT NULL,
		energy INTEGER NOT NULL,
		social INTEGER NOT NULL,
		knowledge REAL NOT NULL,
		fallback INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx, week)
	);

	CREATE TABLE IF NOT EXISTS transitions (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		weeks_stayed INTEGER NOT NULL,
		week INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx, seq)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_results_gpa ON results(run_id, gpa);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}
