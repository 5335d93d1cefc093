package pipeline

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paperdigest/paper-service/internal/config"
	"github.com/paperdigest/paper-service/internal/crawler"
	"github.com/paperdigest/paper-service/internal/extract"
	"github.com/paperdigest/paper-service/internal/model"
	"github.com/paperdigest/paper-service/internal/pdftext"
	"github.com/paperdigest/paper-service/internal/resilience"
	"github.com/paperdigest/paper-service/internal/store"
	"github.com/paperdigest/paper-service/internal/submit"
	"github.com/paperdigest/paper-service/internal/translate"
)

// Pipeline drives a paper through enrichment: PDF download and text
// extraction, metadata extraction, then summary translation. Each stage
// persists its output before the next starts, so a crashed run resumes
// from the last completed stage.
type Pipeline struct {
	store      store.Store
	downloader *pdftext.Downloader
	extractor  *extract.Extractor
	translator *translate.Translator
	submitter  *submit.Service
	crawlers   *crawler.Registry

	languages     []string
	maxConcurrent int
	retry         resilience.RetryConfig
}

func New(
	st store.Store,
	downloader *pdftext.Downloader,
	extractor *extract.Extractor,
	translator *translate.Translator,
	submitter *submit.Service,
	crawlers *crawler.Registry,
	cfg config.PipelineConfig,
	languages []string,
) *Pipeline {
	maxConcurrent := cfg.MaxConcurrentPapers
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{
		store:         st,
		downloader:    downloader,
		extractor:     extractor,
		translator:    translator,
		submitter:     submitter,
		crawlers:      crawlers,
		languages:     languages,
		maxConcurrent: maxConcurrent,
		retry:         resilience.StageRetryConfig(cfg.StageRetries),
	}
}

// ProcessPaper runs every enrichment stage for one stored paper. On stage
// failure the paper is marked failed and the error returned; already-completed
// stages are not repeated on a later run.
func (p *Pipeline) ProcessPaper(ctx context.Context, paperID int64) error {
	paper, err := p.store.GetPaper(ctx, paperID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load paper %d", paperID)
	}

	log := zap.L().With(zap.Int64("paper_id", paperID), zap.String("source_id", paper.SourceID))
	log.Info("processing paper", zap.String("status", string(paper.Status)))

	if err := p.runStages(ctx, paper, log); err != nil {
		if stErr := p.store.UpdateStatus(ctx, paperID, model.StatusFailed); stErr != nil {
			log.Error("failed to mark paper failed", zap.Error(stErr))
		}
		return err
	}

	if err := p.store.UpdateStatus(ctx, paperID, model.StatusReady); err != nil {
		return eris.Wrapf(err, "pipeline: finalize paper %d", paperID)
	}
	log.Info("paper ready")
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, paper *model.Paper, log *zap.Logger) error {
	if paper.FullText == "" && paper.PDFURL != "" {
		if err := p.parseStage(ctx, paper, log); err != nil {
			return err
		}
	}

	if paper.Summary == "" {
		if err := p.extractStage(ctx, paper, log); err != nil {
			return err
		}
	}

	return p.translateStage(ctx, paper, log)
}

// parseStage downloads the PDF and extracts its plain text. A paper without
// a PDF URL skips straight to metadata extraction over its abstract.
func (p *Pipeline) parseStage(ctx context.Context, paper *model.Paper, log *zap.Logger) error {
	if err := p.store.UpdateStatus(ctx, paper.ID, model.StatusParsing); err != nil {
		return eris.Wrap(err, "pipeline: enter parsing")
	}

	retry := p.retry
	retry.OnRetry = resilience.RetryLogger("parse")
	text, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		path, err := p.downloader.Download(ctx, paper.PDFURL)
		if err != nil {
			return "", err
		}
		defer os.Remove(path)
		return pdftext.ExtractText(path)
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: parse paper %d", paper.ID)
	}

	if err := p.store.UpdateFullText(ctx, paper.ID, text, model.StatusParsed); err != nil {
		return eris.Wrap(err, "pipeline: store full text")
	}
	paper.FullText = text
	log.Info("pdf parsed", zap.Int("chars", len(text)))
	return nil
}

// extractStage asks the LLM for structured metadata over the full text, or
// the abstract when no text was extracted.
func (p *Pipeline) extractStage(ctx context.Context, paper *model.Paper, log *zap.Logger) error {
	if err := p.store.UpdateStatus(ctx, paper.ID, model.StatusAnalyzing); err != nil {
		return eris.Wrap(err, "pipeline: enter analyzing")
	}

	text := paper.FullText
	if text == "" {
		text = paper.Abstract
	}
	if text == "" {
		log.Warn("no text to analyze, skipping extraction")
		return nil
	}

	retry := p.retry
	retry.OnRetry = resilience.RetryLogger("extract")
	meta, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (model.ExtractedMetadata, error) {
		return p.extractor.Extract(ctx, text)
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: extract paper %d", paper.ID)
	}

	if err := p.store.UpdateMetadata(ctx, paper.ID, meta, model.StatusAnalyzed); err != nil {
		return eris.Wrap(err, "pipeline: store metadata")
	}
	paper.Summary = meta.Summary
	log.Info("metadata extracted", zap.Int("keywords", len(meta.Keywords)))
	return nil
}

// translateStage translates the summary into each configured language. A
// failed language fails the paper; already-saved languages are skipped.
func (p *Pipeline) translateStage(ctx context.Context, paper *model.Paper, log *zap.Logger) error {
	if len(p.languages) == 0 || paper.Summary == "" {
		return nil
	}

	if err := p.store.UpdateStatus(ctx, paper.ID, model.StatusTranslating); err != nil {
		return eris.Wrap(err, "pipeline: enter translating")
	}

	for _, lang := range p.languages {
		if _, ok := paper.Translations[lang]; ok {
			continue
		}
		retry := p.retry
		retry.OnRetry = resilience.RetryLogger("translate")
		translated, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
			return p.translator.Translate(ctx, paper.Summary, lang)
		})
		if err != nil {
			return eris.Wrapf(err, "pipeline: translate paper %d to %s", paper.ID, lang)
		}
		if err := p.store.SaveTranslation(ctx, paper.ID, lang, translated); err != nil {
			return eris.Wrap(err, "pipeline: store translation")
		}
		log.Info("summary translated", zap.String("language", lang))
	}
	return nil
}

// CrawlOnce fetches recent papers for the configured categories, stores the
// new ones, and processes them with bounded concurrency. Individual paper
// failures are logged and do not stop the run.
func (p *Pipeline) CrawlOnce(ctx context.Context, cfg config.CrawlConfig) error {
	c, err := p.crawlers.Get("arxiv")
	if err != nil {
		return err
	}

	papers, err := c.FetchRecent(ctx, cfg.Categories, cfg.MaxResults, cfg.DaysBack)
	if err != nil {
		return eris.Wrap(err, "pipeline: crawl recent")
	}
	zap.L().Info("crawl fetched papers", zap.Int("count", len(papers)))
	if len(papers) == 0 {
		return nil
	}

	ids := make([]string, 0, len(papers))
	for _, paper := range papers {
		ids = append(ids, paper.SourceID)
	}
	results, err := p.submitter.Submit(ctx, "arxiv", ids)
	if err != nil {
		return eris.Wrap(err, "pipeline: store crawled papers")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for _, result := range results {
		if result.Status != model.SubmissionQueued {
			continue
		}
		paperID := result.PaperID
		g.Go(func() error {
			if err := p.ProcessPaper(gctx, paperID); err != nil {
				zap.L().Error("paper processing failed",
					zap.Int64("paper_id", paperID),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}
