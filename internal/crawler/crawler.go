package crawler

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/paperdigest/paper-service/internal/model"
)

// Crawler fetches paper metadata from one external source and normalizes
// it into the canonical CrawledPaper shape.
type Crawler interface {
	// FetchByID looks up a single paper by its source-scoped ID. A nil
	// paper with nil error means the source has no record for that ID.
	FetchByID(ctx context.Context, id string) (*model.CrawledPaper, error)

	// FetchRecent returns papers published within the last daysBack days
	// in any of the given categories, newest first.
	FetchRecent(ctx context.Context, categories []string, maxResults, daysBack int) ([]model.CrawledPaper, error)
}

// Registry maps source names to crawlers. It is populated at startup and
// never mutated afterwards.
type Registry struct {
	crawlers map[string]Crawler
}

// NewRegistry builds a registry from the given named crawlers.
func NewRegistry(crawlers map[string]Crawler) *Registry {
	m := make(map[string]Crawler, len(crawlers))
	for name, c := range crawlers {
		m[name] = c
	}
	return &Registry{crawlers: m}
}

// Get returns the crawler for the given source name.
func (r *Registry) Get(source string) (Crawler, error) {
	c, ok := r.crawlers[source]
	if !ok {
		return nil, eris.Errorf("crawler: unsupported paper source: %s", source)
	}
	return c, nil
}

// Sources returns the registered source names.
func (r *Registry) Sources() []string {
	names := make([]string, 0, len(r.crawlers))
	for name := range r.crawlers {
		names = append(names, name)
	}
	return names
}
