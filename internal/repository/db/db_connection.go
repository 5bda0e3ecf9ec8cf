package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// One writer keeps appends serialized and makes ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// FULL fsyncs every commit, so an append is on disk when it returns.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaHistory = `
CREATE TABLE IF NOT EXISTS history (
    timestamp TIMESTAMP NOT NULL,
    location TEXT NOT NULL,
    temperature INTEGER NOT NULL,
    humidity INTEGER NOT NULL
);
`

const schemaHistoryIndex = `
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history (timestamp);
`

const schemaHeaterHistory = `
CREATE TABLE IF NOT EXISTS heater_history (
    timestamp TIMESTAMP NOT NULL,
    shelly_id TEXT NOT NULL,
    is_active BOOLEAN NOT NULL
);
`

const schemaHeaterHistoryIndex = `
CREATE INDEX IF NOT EXISTS idx_heater_history_timestamp ON heater_history (timestamp);
`

const schemaLocationSettings = `
CREATE TABLE IF NOT EXISTS location_settings (
    location TEXT PRIMARY KEY,
    desired_temperature INTEGER NOT NULL,
    enabled BOOLEAN NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaHistory,
		schemaHistoryIndex,
		schemaHeaterHistory,
		schemaHeaterHistoryIndex,
		schemaLocationSettings,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
