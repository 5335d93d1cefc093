package submit

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/paperdigest/paper-service/internal/crawler"
	"github.com/paperdigest/paper-service/internal/model"
	"github.com/paperdigest/paper-service/internal/store"
)

// Service accepts batches of paper IDs, fetches each from its source, and
// persists new papers in a single transaction. Failures on one ID never
// abort the rest of the batch.
type Service struct {
	crawlers *crawler.Registry
	store    store.Store
}

func NewService(crawlers *crawler.Registry, st store.Store) *Service {
	return &Service{crawlers: crawlers, store: st}
}

// Submit fetches and stores the given paper IDs from one source. Results
// come back in submission order, one per ID. An unknown source fails the
// whole call before any fetch; everything else is reported per ID.
func (s *Service) Submit(ctx context.Context, source string, paperIDs []string) ([]model.SubmissionResult, error) {
	c, err := s.crawlers.Get(source)
	if err != nil {
		return nil, err
	}

	batch, err := s.store.BeginBatch(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "submit: begin batch")
	}
	defer batch.Rollback(ctx)

	results := make([]model.SubmissionResult, 0, len(paperIDs))
	queued, skipped := 0, 0
	for _, paperID := range paperIDs {
		result := s.submitOne(ctx, c, batch, source, paperID)
		switch result.Status {
		case model.SubmissionQueued:
			queued++
		default:
			skipped++
		}
		results = append(results, result)
	}

	if err := batch.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "submit: commit batch")
	}

	zap.L().Info("submission batch complete",
		zap.String("source", source),
		zap.Int("queued", queued),
		zap.Int("skipped", skipped))

	return results, nil
}

func (s *Service) submitOne(ctx context.Context, c crawler.Crawler, batch store.Batch, source, paperID string) model.SubmissionResult {
	crawled, err := c.FetchByID(ctx, paperID)
	if err != nil {
		zap.L().Warn("paper fetch failed",
			zap.String("source", source),
			zap.String("paper_id", paperID),
			zap.Error(err))
		return model.SubmissionResult{
			SourceID: paperID,
			Status:   model.SubmissionError,
			Message:  fmt.Sprintf("Failed to fetch paper %s from %s", paperID, source),
		}
	}
	if crawled == nil {
		return model.SubmissionResult{
			SourceID: paperID,
			Status:   model.SubmissionNotFound,
			Message:  fmt.Sprintf("Paper %s not found on %s", paperID, source),
		}
	}

	id, created, err := batch.UpsertPaper(ctx, *crawled)
	if err != nil {
		zap.L().Warn("paper upsert failed",
			zap.String("source", source),
			zap.String("paper_id", paperID),
			zap.Error(err))
		return model.SubmissionResult{
			SourceID: paperID,
			Status:   model.SubmissionError,
			Message:  fmt.Sprintf("Failed to store paper %s from %s", paperID, source),
		}
	}
	if !created {
		return model.SubmissionResult{
			SourceID: paperID,
			Status:   model.SubmissionDuplicate,
			PaperID:  id,
			Message:  fmt.Sprintf("Paper already exists (id=%d)", id),
		}
	}
	return model.SubmissionResult{
		SourceID: paperID,
		Status:   model.SubmissionQueued,
		PaperID:  id,
		Message:  fmt.Sprintf("Paper queued for processing: %s", crawled.Title),
	}
}
