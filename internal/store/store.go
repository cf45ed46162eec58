// Package store reads and writes the application database through a
// canonical, engine-independent snapshot format. The snapshot is the unit of
// sync: Export serializes every table, Import atomically replaces every
// table, and ImportLegacy translates the pre-tuple export format before
// handing it to Import.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/inkstone-app/inkstone/internal/models"
)

var (
	// ErrBadSnapshot indicates a payload that does not conform to the
	// snapshot contract (malformed JSON, wrong tuple arity).
	ErrBadSnapshot = errors.New("malformed snapshot")

	// ErrUnsupportedVersion indicates a snapshot produced by an unknown
	// (usually newer) version of the application.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Engine abstracts the two sqlite backends. DB hands out the live database;
// Persist flushes in-memory state to durable storage and is a no-op for the
// file-backed engine.
type Engine interface {
	DB() *sql.DB
	Persist(ctx context.Context) error
	Close() error
}

// Store implements snapshot export and import over an Engine.
type Store struct {
	engine Engine
	logger *slog.Logger
}

// New wraps an engine. A nil logger disables logging.
func New(engine Engine, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{engine: engine, logger: logger}
}

// DB exposes the underlying database for direct reads.
func (s *Store) DB() *sql.DB { return s.engine.DB() }

// Close releases the underlying engine.
func (s *Store) Close() error { return s.engine.Close() }

// Export serializes the entire database into a canonical snapshot. Books and
// chapters come out as named-field objects, all other tables as raw
// column-ordered tuples. Row order is by primary key so equal databases
// produce equal snapshots.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	db := s.engine.DB()

	snap := &models.Snapshot{
		Version:  models.SnapshotVersion,
		Books:    []models.Book{},
		Chapters: []models.Chapter{},
	}

	if err := s.exportBooks(ctx, db, snap); err != nil {
		return nil, err
	}
	if err := s.exportChapters(ctx, db, snap); err != nil {
		return nil, err
	}
	for _, t := range tupleTables {
		rows, err := s.exportTuples(ctx, db, t)
		if err != nil {
			return nil, err
		}
		snap.SetTuples(t.Name, rows)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	s.logger.Debug("exported snapshot",
		"books", len(snap.Books), "chapters", len(snap.Chapters), "bytes", len(data))
	return data, nil
}

func (s *Store) exportBooks(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	rows, err := db.QueryContext(ctx,
		"SELECT id, title, synopsis, created_at, updated_at FROM books ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to read books: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Synopsis, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan book: %w", err)
		}
		snap.Books = append(snap.Books, b)
	}
	return rows.Err()
}

func (s *Store) exportChapters(ctx context.Context, db *sql.DB, snap *models.Snapshot) error {
	rows, err := db.QueryContext(ctx,
		"SELECT id, book_id, part_id, title, content, sort_order, created_at, updated_at FROM chapters ORDER BY id")
	if err != nil {
		return fmt.Errorf("failed to read chapters: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.PartID, &c.Title, &c.Content,
			&c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan chapter: %w", err)
		}
		snap.Chapters = append(snap.Chapters, c)
	}
	return rows.Err()
}

// exportTuples reads one tuple table in its declared column order. []byte
// values are normalized to string so the snapshot round-trips through JSON.
func (s *Store) exportTuples(ctx context.Context, db *sql.DB, t Table) ([][]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", //nolint:gosec // registry names, not user input
		strings.Join(t.Columns, ", "), t.Name)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.Name, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := [][]any{}
	for rows.Next() {
		vals := make([]any, len(t.Columns))
		ptrs := make([]any, len(t.Columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.Name, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// Import atomically replaces the entire database with the snapshot contents:
// inside a single transaction every table is wiped in reverse dependency
// order, then repopulated in FK-safe order. On any error the transaction
// rolls back and the previous contents remain intact. A successful import
// ends with a Persist so the durable copy matches.
func (s *Store) Import(ctx context.Context, data []byte) error {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if snap.Version != models.SnapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, snap.Version, models.SnapshotVersion)
	}

	// Validate tuple arity up front so a bad payload never starts wiping.
	for _, t := range tupleTables {
		for i, row := range snap.Tuples(t.Name) {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("%w: %s row %d has %d values, want %d",
					ErrBadSnapshot, t.Name, i, len(row), len(t.Columns))
			}
		}
	}

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, name := range tableDeleteOrder() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}
	}

	if err := importBooks(ctx, tx, snap.Books); err != nil {
		return err
	}
	if err := importChapters(ctx, tx, snap.Chapters); err != nil {
		return err
	}
	for _, t := range tupleTables {
		if err := importTuples(ctx, tx, t, snap.Tuples(t.Name)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	if err := s.engine.Persist(ctx); err != nil {
		return fmt.Errorf("failed to persist imported data: %w", err)
	}

	s.logger.Info("imported snapshot",
		"books", len(snap.Books), "chapters", len(snap.Chapters))
	return nil
}

func importBooks(ctx context.Context, tx *sql.Tx, books []models.Book) error {
	for _, b := range books {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO books (id, title, synopsis, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			b.ID, b.Title, b.Synopsis, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert book %s: %w", b.ID, err)
		}
	}
	return nil
}

func importChapters(ctx context.Context, tx *sql.Tx, chapters []models.Chapter) error {
	for _, c := range chapters {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO chapters (id, book_id, part_id, title, content, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			c.ID, c.BookID, c.PartID, c.Title, c.Content, c.SortOrder, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert chapter %s: %w", c.ID, err)
		}
	}
	return nil
}

func importTuples(ctx context.Context, tx *sql.Tx, t Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", //nolint:gosec // registry names, not user input
		t.Name, strings.Join(t.Columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", t.Name, err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert %s row %d: %w", t.Name, i, err)
		}
	}
	return nil
}
