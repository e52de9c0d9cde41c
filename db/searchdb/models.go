package searchdb

import (
	"time"

	"github.com/paperbase/paperbase/db/docstore"
)

// Entry is the derived, searchable representation of a ready document. It
// is never a source of truth: the document store can rebuild every entry.
type Entry struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Keywords   []string  `json:"keywords"`
	FullText   string    `json:"full_text"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewEntry maps a stored document onto its searchable fields. Only ready
// documents are ever indexed.
func NewEntry(doc *docstore.Document) Entry {
	return Entry{
		ID:         doc.ID,
		Filename:   doc.Filename,
		Keywords:   doc.Keywords,
		FullText:   doc.FullText,
		UploadedAt: doc.UploadedAt,
	}
}

type Result struct {
	ID            string   `json:"id"`
	Filename      string   `json:"filename"`
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields"`
	UploadedAt    string   `json:"uploaded_at"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	MaxScore   float64  `json:"max_score"`
	SearchTime string   `json:"search_time"`
}
