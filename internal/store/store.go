package store

import (
	"context"
	"errors"

	"github.com/paperdigest/paper-service/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// Batch is a transaction scope owned by exactly one in-flight submission.
// Nothing is visible to other sessions until Commit; Rollback discards all
// uncommitted rows, so a cancelled batch leaves no partial state.
type Batch interface {
	// UpsertPaper inserts the crawled paper unless a row with the same
	// (source, source_id) already exists, in which case the existing row
	// is returned unmodified. Returns the paper ID and whether a new row
	// was created. Safe under concurrent submissions of the same key.
	UpsertPaper(ctx context.Context, crawled model.CrawledPaper) (int64, bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store defines the persistence interface for the paper pipeline.
type Store interface {
	// BeginBatch opens the transaction scope for one submission batch.
	BeginBatch(ctx context.Context) (Batch, error)

	// Papers
	GetPaper(ctx context.Context, id int64) (*model.Paper, error)
	GetPaperBySource(ctx context.Context, source, sourceID string) (*model.Paper, error)
	ListPapers(ctx context.Context, filter PaperFilter) ([]model.Paper, error)

	// Enrichment updates (mutated in place by pipeline stages)
	UpdateStatus(ctx context.Context, id int64, status model.PaperStatus) error
	UpdateFullText(ctx context.Context, id int64, fullText string, status model.PaperStatus) error
	UpdateMetadata(ctx context.Context, id int64, meta model.ExtractedMetadata, status model.PaperStatus) error
	SaveTranslation(ctx context.Context, id int64, language, summary string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
