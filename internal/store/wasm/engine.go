// Package wasm is the sandboxed store engine: sqlite compiled to WebAssembly
// running under an embedded wazero runtime, with the live database held
// entirely in memory. Durability is explicit: Persist serializes the whole
// database to a snapshot file (VACUUM INTO a temp file, then atomic rename),
// and Open loads the previous snapshot back into memory if one exists.
package wasm

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver" // sqlite3 driver over wazero
	_ "github.com/ncruces/go-sqlite3/embed"  // embedded sqlite wasm binary

	"github.com/inkstone-app/inkstone/internal/store"
)

// Engine holds an in-memory database plus the path of its durable snapshot.
type Engine struct {
	db           *sql.DB
	snapshotPath string
	logger       *slog.Logger
}

var _ store.Engine = (*Engine)(nil)

// Open builds a fresh in-memory database, migrates it, and loads the durable
// snapshot at snapshotPath into it when one exists.
func Open(ctx context.Context, snapshotPath string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Every pooled connection would get its own private :memory: database;
	// a single connection keeps all queries on the same one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set pragma: %w", err)
	}

	if err := store.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	e := &Engine{db: db, snapshotPath: snapshotPath, logger: logger}

	if _, err := os.Stat(snapshotPath); err == nil {
		if err := e.load(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		e.logger.Debug("loaded durable snapshot", "path", snapshotPath)
	}

	return e, nil
}

// DB returns the live in-memory database handle.
func (e *Engine) DB() *sql.DB { return e.db }

// load copies the durable snapshot's application tables into the in-memory
// database, in FK-safe insertion order. The snapshot was produced by Persist
// from the same schema, so per-table column order matches.
func (e *Engine) load(ctx context.Context) error {
	attach := fmt.Sprintf("ATTACH DATABASE '%s' AS durable;", sqlQuote(e.snapshotPath))
	if _, err := e.db.ExecContext(ctx, attach); err != nil {
		return fmt.Errorf("failed to attach snapshot: %w", err)
	}
	defer func() {
		_, _ = e.db.ExecContext(ctx, "DETACH DATABASE durable;")
	}()

	for _, name := range store.TableInsertOrder() {
		var exists int
		err := e.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM durable.sqlite_master WHERE type = 'table' AND name = ?", name).
			Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to inspect snapshot schema: %w", err)
		}
		if exists == 0 {
			continue
		}
		copyStmt := fmt.Sprintf("INSERT INTO main.%s SELECT * FROM durable.%s;", name, name)
		if _, err := e.db.ExecContext(ctx, copyStmt); err != nil {
			return fmt.Errorf("failed to load table %s from snapshot: %w", name, err)
		}
	}
	return nil
}

// Persist serializes the whole in-memory database to the snapshot path.
// VACUUM INTO writes a complete, compacted database file; the rename makes
// the replacement atomic so a crash mid-write never corrupts the previous
// snapshot.
func (e *Engine) Persist(ctx context.Context) error {
	tmp := e.snapshotPath + ".tmp"
	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale temp snapshot: %w", err)
	}

	vacuum := fmt.Sprintf("VACUUM INTO '%s';", sqlQuote(tmp))
	if _, err := e.db.ExecContext(ctx, vacuum); err != nil {
		return fmt.Errorf("failed to serialize database: %w", err)
	}

	if err := os.Rename(tmp, e.snapshotPath); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	e.logger.Debug("persisted database snapshot", "path", e.snapshotPath)
	return nil
}

// Close discards the in-memory database. Callers that want the latest state
// on disk must Persist first.
func (e *Engine) Close() error { return e.db.Close() }

// sqlQuote escapes a path for embedding in a single-quoted SQL literal.
// ATTACH and VACUUM INTO do not take bind parameters for file names.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
