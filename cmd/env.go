package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/paperdigest/paper-service/internal/crawler"
	"github.com/paperdigest/paper-service/internal/extract"
	"github.com/paperdigest/paper-service/internal/llm"
	"github.com/paperdigest/paper-service/internal/pdftext"
	"github.com/paperdigest/paper-service/internal/pipeline"
	"github.com/paperdigest/paper-service/internal/store"
	"github.com/paperdigest/paper-service/internal/submit"
	"github.com/paperdigest/paper-service/internal/translate"
)

// env bundles the wired components a command needs.
type env struct {
	Store     store.Store
	Crawlers  *crawler.Registry
	Submitter *submit.Service
	Pipeline  *pipeline.Pipeline
}

func (e *env) Close() {
	e.Store.Close()
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("main: unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		st.Close()
		return nil, err
	}

	arxiv := crawler.NewArxivCrawler(cfg.Arxiv.Timeout(),
		crawler.WithBaseURL(cfg.Arxiv.BaseURL),
		crawler.WithUserAgent(cfg.Arxiv.UserAgent))
	crawlers := crawler.NewRegistry(map[string]crawler.Crawler{
		"arxiv": arxiv,
	})

	submitter := submit.NewService(crawlers, st)
	pipe := pipeline.New(
		st,
		pdftext.NewDownloader(cfg.PDF.Timeout(), cfg.PDF.TempDir),
		extract.NewExtractor(llmClient),
		translate.NewTranslator(llmClient),
		submitter,
		crawlers,
		cfg.Pipeline,
		cfg.Translate.Languages,
	)

	return &env{
		Store:     st,
		Crawlers:  crawlers,
		Submitter: submitter,
		Pipeline:  pipe,
	}, nil
}
