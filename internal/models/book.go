package models

// Book represents a single writing project. The column layout is fixed by the
// application schema; the sync engine moves these records opaquely.
type Book struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Synopsis  string `json:"synopsis"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Chapter is a unit of book content. PartID is empty for chapters that are
// not grouped under a book part.
type Chapter struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	PartID    string `json:"part_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SortOrder int64  `json:"sort_order"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
