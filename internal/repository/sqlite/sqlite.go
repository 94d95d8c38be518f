// Package sqlite implements the repository interfaces on an embedded SQLite
// database (modernc.org/sqlite, pure Go — no CGo toolchain needed).
//
// SQLite's single-writer model does the heavy lifting for the store's
// concurrency contract: writes serialize at the database level, and every
// multi-statement operation here runs inside one transaction so partial
// states are never visible.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DB wraps a sql.DB connection pool and implements
// repository.UserRepository and repository.EntityRepository.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// The pragmas below are per-connection; a single pooled connection
	// keeps them in force and serializes writers at the pool level.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed during a write; foreign keys are off by
	// default in SQLite and the schema relies on them.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                TEXT PRIMARY KEY,
			username          TEXT NOT NULL UNIQUE,
			email             TEXT NOT NULL UNIQUE,
			password          TEXT NOT NULL,
			full_name         TEXT NOT NULL DEFAULT '',
			bio               TEXT NOT NULL DEFAULT '',
			location          TEXT NOT NULL DEFAULT '',
			git_contributions INTEGER NOT NULL DEFAULT 0,
			hours_worked      REAL NOT NULL DEFAULT 0,
			leaderboard_rank  INTEGER NOT NULL DEFAULT 0,
			version           INTEGER NOT NULL DEFAULT 0,
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL CHECK (kind IN ('skill', 'project', 'event')),
			name       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
	`)
	if err != nil {
		return fmt.Errorf("creating entities table: %w", err)
	}

	// user_refs is the explicit foreign-key table behind the three
	// reference sequences. Deleting a user cascades its outbound rows;
	// deleting a referenced entity is blocked by the FK (the repository
	// refuses it earlier with a counted error).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_refs (
			user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind      TEXT NOT NULL CHECK (kind IN ('skill', 'project', 'event')),
			entity_id TEXT NOT NULL REFERENCES entities(id),
			position  INTEGER NOT NULL,
			PRIMARY KEY (user_id, kind, entity_id)
		);
		CREATE INDEX IF NOT EXISTS idx_user_refs_entity ON user_refs(entity_id);
	`)
	if err != nil {
		return fmt.Errorf("creating user_refs table: %w", err)
	}

	return nil
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error. All multi-statement writes in this package go through it.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
