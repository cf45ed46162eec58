package store

// Table is one application table as seen by the export/import contract.
// Column order is the contract: tuple tables are serialized as raw
// column-ordered arrays, so export and import must agree on it exactly.
type Table struct {
	Name    string
	Columns []string
}

// namedTables are exported as named-field objects (models.Book,
// models.Chapter) instead of tuples.
var (
	booksTable = Table{
		Name:    "books",
		Columns: []string{"id", "title", "synopsis", "created_at", "updated_at"},
	}
	chaptersTable = Table{
		Name:    "chapters",
		Columns: []string{"id", "book_id", "part_id", "title", "content", "sort_order", "created_at", "updated_at"},
	}
)

// tupleTables in dependency (insertion) order: every table here may reference
// books, chapters, or wiki_pages, all of which are inserted before it.
// Deletion happens in the reverse of this order.
var tupleTables = []Table{
	{Name: "book_parts", Columns: []string{"id", "book_id", "title", "sort_order"}},
	{Name: "chapter_summaries", Columns: []string{"id", "chapter_id", "book_id", "summary", "updated_at"}},
	{Name: "wiki_pages", Columns: []string{"id", "book_id", "title", "content", "category", "updated_at"}},
	{Name: "book_characters", Columns: []string{"id", "book_id", "name", "description", "traits"}},
	{Name: "chapter_reviews", Columns: []string{"id", "chapter_id", "book_id", "reviewer", "content", "rating", "created_at"}},
	{Name: "custom_reviewer_profiles", Columns: []string{"id", "name", "persona", "tone"}},
	{Name: "ai_profiles", Columns: []string{"id", "name", "provider", "model", "temperature"}},
	{Name: "wiki_updates", Columns: []string{"id", "wiki_page_id", "book_id", "chapter_id", "diff", "created_at"}},
	{Name: "chapter_wiki_mentions", Columns: []string{"id", "chapter_id", "wiki_page_id", "book_id"}},
}

// TableInsertOrder returns every application table name in FK-safe insertion
// order. Engines use it when copying whole databases (the WASM engine's
// durable snapshot load); import uses it directly.
func TableInsertOrder() []string {
	names := make([]string, 0, len(tupleTables)+2)
	names = append(names, booksTable.Name, chaptersTable.Name)
	for _, t := range tupleTables {
		names = append(names, t.Name)
	}
	return names
}

// tableDeleteOrder is TableInsertOrder reversed: dependents are wiped before
// the rows they reference.
func tableDeleteOrder() []string {
	insert := TableInsertOrder()
	names := make([]string, 0, len(insert))
	for i := len(insert) - 1; i >= 0; i-- {
		names = append(names, insert[i])
	}
	return names
}
