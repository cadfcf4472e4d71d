// Package runlog records what the vehicle decided during a run: behavior
// transitions, maneuvers, and marks, keyed by a per-run ID. It is written for
// post-run review, not read by the control loop.
package runlog

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the run log at path and applies pending
// migrations. Use ":memory:" for a throwaway log.
func Open(path string, log zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	// a single connection keeps an in-memory database alive and serialises
	// writers without SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, log: log}
	if err := db.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) applyPragmas() error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}
