// Package sqlite is the file-backed store engine using the native (cgo-free,
// transpiled) sqlite driver. Durability comes from sqlite itself, so Persist
// is a no-op.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/inkstone-app/inkstone/internal/store"
)

// Engine wraps a file-backed sqlite database.
type Engine struct {
	db *sql.DB
}

var _ store.Engine = (*Engine)(nil)

// Open opens (creating if necessary) the database at dbPath and brings its
// schema up to date. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string) (*Engine, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL allows concurrent readers but still a single writer; one
	// connection keeps transactions serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := store.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Engine{db: db}, nil
}

// DB returns the live database handle.
func (e *Engine) DB() *sql.DB { return e.db }

// Persist is a no-op: the database file is the durable copy.
func (e *Engine) Persist(ctx context.Context) error { return nil }

// Close closes the underlying database.
func (e *Engine) Close() error { return e.db.Close() }
