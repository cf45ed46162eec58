package models

// SnapshotVersion is the current snapshot envelope version. Import checks it
// so future schema changes can be detected instead of silently misread.
const SnapshotVersion = 2

// Snapshot is the canonical portable export of the whole local database.
// Books and chapters are exported as named-field objects; every other table
// is exported as raw column-ordered tuples, so export and import must agree
// exactly on column order per table (the store's schema registry is the
// single source of truth).
//
// A snapshot only ever exists in transit: it is produced by Export, encrypted
// immediately, and discarded after Import.
type Snapshot struct {
	Version                int       `json:"version"`
	Books                  []Book    `json:"books"`
	Chapters               []Chapter `json:"chapters"`
	BookParts              [][]any   `json:"book_parts"`
	ChapterSummaries       [][]any   `json:"chapter_summaries"`
	WikiPages              [][]any   `json:"wiki_pages"`
	BookCharacters         [][]any   `json:"book_characters"`
	ChapterReviews         [][]any   `json:"chapter_reviews"`
	CustomReviewerProfiles [][]any   `json:"custom_reviewer_profiles"`
	AIProfiles             [][]any   `json:"ai_profiles"`
	WikiUpdates            [][]any   `json:"wiki_updates"`
	ChapterWikiMentions    [][]any   `json:"chapter_wiki_mentions"`
}

// Tuples returns the raw tuple rows for the given table name. Unknown names
// return nil; the two named-object tables are not addressable this way.
func (s *Snapshot) Tuples(table string) [][]any {
	switch table {
	case "book_parts":
		return s.BookParts
	case "chapter_summaries":
		return s.ChapterSummaries
	case "wiki_pages":
		return s.WikiPages
	case "book_characters":
		return s.BookCharacters
	case "chapter_reviews":
		return s.ChapterReviews
	case "custom_reviewer_profiles":
		return s.CustomReviewerProfiles
	case "ai_profiles":
		return s.AIProfiles
	case "wiki_updates":
		return s.WikiUpdates
	case "chapter_wiki_mentions":
		return s.ChapterWikiMentions
	}
	return nil
}

// SetTuples replaces the tuple rows for the given table name.
func (s *Snapshot) SetTuples(table string, rows [][]any) {
	switch table {
	case "book_parts":
		s.BookParts = rows
	case "chapter_summaries":
		s.ChapterSummaries = rows
	case "wiki_pages":
		s.WikiPages = rows
	case "book_characters":
		s.BookCharacters = rows
	case "chapter_reviews":
		s.ChapterReviews = rows
	case "custom_reviewer_profiles":
		s.CustomReviewerProfiles = rows
	case "ai_profiles":
		s.AIProfiles = rows
	case "wiki_updates":
		s.WikiUpdates = rows
	case "chapter_wiki_mentions":
		s.ChapterWikiMentions = rows
	}
}
