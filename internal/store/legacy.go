package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkstone-app/inkstone/internal/models"
)

// legacyMigration converts one legacy export version into a current snapshot.
// New entries are appended when the on-disk format changes again; lookup is
// by the payload's version tag.
type legacyMigration func(payload map[string]json.RawMessage) (*models.Snapshot, error)

var legacyMigrations = map[int]legacyMigration{
	1: migrateLegacyV1,
}

// ImportLegacy accepts an export produced by the old app versions (every
// table as named-object arrays with camelCase fields), translates it into the
// canonical snapshot shape and imports it. Payloads without a version tag are
// treated as version 1.
func (s *Store) ImportLegacy(ctx context.Context, raw []byte) error {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	version := 1
	if v, ok := payload["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return fmt.Errorf("%w: bad version tag: %w", ErrBadSnapshot, err)
		}
	}

	migrate, ok := legacyMigrations[version]
	if !ok {
		return fmt.Errorf("%w: legacy version %d", ErrUnsupportedVersion, version)
	}

	snap, err := migrate(payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode migrated snapshot: %w", err)
	}

	s.logger.Info("migrated legacy export", "legacy_version", version)
	return s.Import(ctx, data)
}

// legacyV1Fields maps each tuple table's canonical columns to the field names
// the v1 export used, in canonical column order.
var legacyV1Fields = map[string][]string{
	"book_parts":               {"partId", "bookId", "name", "order"},
	"chapter_summaries":        {"summaryId", "chapterId", "bookId", "summary", "updatedAt"},
	"wiki_pages":               {"wikiPageId", "bookId", "name", "body", "kind", "updatedAt"},
	"book_characters":          {"characterId", "bookId", "name", "description", "traits"},
	"chapter_reviews":          {"reviewId", "chapterId", "bookId", "reviewer", "body", "rating", "createdAt"},
	"custom_reviewer_profiles": {"profileId", "name", "persona", "tone"},
	"ai_profiles":              {"profileId", "name", "provider", "model", "temperature"},
	"wiki_updates":             {"updateId", "wikiPageId", "bookId", "chapterId", "diff", "createdAt"},
	"chapter_wiki_mentions":    {"mentionId", "chapterId", "wikiPageId", "bookId"},
}

func migrateLegacyV1(payload map[string]json.RawMessage) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Version:  models.SnapshotVersion,
		Books:    []models.Book{},
		Chapters: []models.Chapter{},
	}

	books, err := legacyRows(payload, "books")
	if err != nil {
		return nil, err
	}
	for _, row := range books {
		snap.Books = append(snap.Books, models.Book{
			ID:        legacyString(row, "bookId"),
			Title:     legacyString(row, "name"),
			Synopsis:  legacyString(row, "description"),
			CreatedAt: legacyInt64(row, "createdAt"),
			UpdatedAt: legacyInt64(row, "updatedAt"),
		})
	}

	chapters, err := legacyRows(payload, "chapters")
	if err != nil {
		return nil, err
	}
	for _, row := range chapters {
		snap.Chapters = append(snap.Chapters, models.Chapter{
			ID:        legacyString(row, "chapterId"),
			BookID:    legacyString(row, "bookId"),
			PartID:    legacyString(row, "partId"),
			Title:     legacyString(row, "name"),
			Content:   legacyString(row, "text"),
			SortOrder: legacyInt64(row, "order"),
			CreatedAt: legacyInt64(row, "createdAt"),
			UpdatedAt: legacyInt64(row, "updatedAt"),
		})
	}

	// Optional tables: absent keys become empty tables, present ones are
	// remapped field-by-field into canonical column order.
	for _, t := range tupleTables {
		rows, err := legacyRows(payload, t.Name)
		if err != nil {
			return nil, err
		}
		fields := legacyV1Fields[t.Name]
		tuples := [][]any{}
		for _, row := range rows {
			tuple := make([]any, len(fields))
			for i, field := range fields {
				tuple[i] = row[field]
			}
			// The id column is always first; v1 exports occasionally
			// lack it, so synthesize one rather than reject the row.
			if tuple[0] == nil || tuple[0] == "" {
				tuple[0] = uuid.NewString()
			}
			tuples = append(tuples, tuple)
		}
		snap.SetTuples(t.Name, tuples)
	}

	return snap, nil
}

// legacyRows decodes one named-object array from the payload. A missing key
// is an empty table, not an error.
func legacyRows(payload map[string]json.RawMessage, key string) ([]map[string]any, error) {
	raw, ok := payload[key]
	if !ok {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: bad %s array: %w", ErrBadSnapshot, key, err)
	}
	return rows, nil
}

func legacyString(row map[string]any, field string) string {
	if v, ok := row[field].(string); ok {
		return v
	}
	return ""
}

func legacyInt64(row map[string]any, field string) int64 {
	if v, ok := row[field].(float64); ok {
		return int64(v)
	}
	return 0
}
