package model

import "time"

// PaperStatus tracks a paper's position in the enrichment lifecycle.
// New statuses may be introduced by downstream stages; the store does not
// enforce a closed set.
type PaperStatus string

const (
	StatusPending     PaperStatus = "pending"
	StatusCrawled     PaperStatus = "crawled"
	StatusParsing     PaperStatus = "parsing"
	StatusParsed      PaperStatus = "parsed"
	StatusAnalyzing   PaperStatus = "analyzing"
	StatusAnalyzed    PaperStatus = "analyzed"
	StatusTranslating PaperStatus = "translating"
	StatusReady       PaperStatus = "ready"
	StatusFailed      PaperStatus = "failed"
)

// CrawledPaper is the canonical record produced by a source adapter.
// It is constructed fresh per fetch and never mutated.
type CrawledPaper struct {
	Source      string     `json:"source"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract,omitempty"`
	PDFURL      string     `json:"pdf_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Categories  []string   `json:"categories"`
	AuthorNames []string   `json:"author_names"`
}

// Paper is the durable entity. (Source, SourceID) is the sole
// deduplication key.
type Paper struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract,omitempty"`
	PDFURL      string     `json:"pdf_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Categories  []string   `json:"categories,omitempty"`

	FullText      string            `json:"full_text,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Translations  map[string]string `json:"translations,omitempty"` // language code -> translated summary
	Contributions []string          `json:"contributions,omitempty"`
	Keywords      []string          `json:"keywords,omitempty"`

	Status    PaperStatus `json:"status"`
	Authors   []Author    `json:"authors,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Author is a paper author. Papers reference authors in submission order.
type Author struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// ExtractedMetadata is the structured output of LLM metadata extraction.
// Fields the model omits default to their zero value.
type ExtractedMetadata struct {
	Summary       string   `json:"summary"`
	Contributions []string `json:"contributions"`
	Keywords      []string `json:"keywords"`
	Methodology   string   `json:"methodology"`
	Results       string   `json:"results"`
}

// SubmissionStatus classifies the outcome of one submitted paper ID.
type SubmissionStatus string

const (
	SubmissionQueued    SubmissionStatus = "queued"
	SubmissionDuplicate SubmissionStatus = "duplicate"
	SubmissionNotFound  SubmissionStatus = "not_found"
	SubmissionError     SubmissionStatus = "error"
)

// SubmissionResult is the per-ID outcome of a submission batch. A batch of
// N ids always yields exactly N results, in input order.
type SubmissionResult struct {
	SourceID string           `json:"source_id"`
	Status   SubmissionStatus `json:"status"`
	PaperID  int64            `json:"paper_id,omitempty"`
	Message  string           `json:"message"`
}
