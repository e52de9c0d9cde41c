package docstore

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Page holds the recognized text for a single normalized page. Index is the
// canonical reading order, assigned by the normalizer.
type Page struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Document is the unit of ingestion and retrieval. The store is the single
// source of truth for it; the search index is derived and rebuildable.
type Document struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Format        string    `json:"format"`
	SizeBytes     int64     `json:"size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at"`
	PageCount     int       `json:"page_count"`
	Pages         []Page    `json:"pages"`
	FullText      string    `json:"full_text"`
	Keywords      []string  `json:"keywords"`
	Confidence    float64   `json:"confidence"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// Metadata is what is known about a document at upload time, before any
// pipeline stage has run.
type Metadata struct {
	Filename  string
	Format    string
	SizeBytes int64
}

// Summary is the listing view of a document: everything except pages and
// full text.
type Summary struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Format        string    `json:"format"`
	SizeBytes     int64     `json:"size_bytes"`
	UploadedAt    time.Time `json:"uploaded_at"`
	PageCount     int       `json:"page_count"`
	Keywords      []string  `json:"keywords"`
	Confidence    float64   `json:"confidence"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func (d *Document) Summary() Summary {
	return Summary{
		ID:            d.ID,
		Filename:      d.Filename,
		Format:        d.Format,
		SizeBytes:     d.SizeBytes,
		UploadedAt:    d.UploadedAt,
		PageCount:     d.PageCount,
		Keywords:      d.Keywords,
		Confidence:    d.Confidence,
		Status:        d.Status,
		FailureReason: d.FailureReason,
	}
}
