package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/paperdigest/paper-service/internal/model"
)

const arxivSource = "arxiv"

// ArxivCrawler crawls papers from arXiv using the Atom feed API.
type ArxivCrawler struct {
	baseURL string
	client  *http.Client
	// arXiv asks clients to keep request rates modest; one request per
	// 3 seconds with a small burst stays well inside their guidance.
	limiter   *rate.Limiter
	userAgent string
}

// ArxivOption configures the crawler.
type ArxivOption func(*ArxivCrawler)

// WithBaseURL overrides the arXiv API endpoint (used by tests).
func WithBaseURL(u string) ArxivOption {
	return func(c *ArxivCrawler) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) ArxivOption {
	return func(c *ArxivCrawler) { c.client = hc }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ArxivOption {
	return func(c *ArxivCrawler) { c.userAgent = ua }
}

// NewArxivCrawler creates an arXiv crawler with the given request timeout.
func NewArxivCrawler(timeout time.Duration, opts ...ArxivOption) *ArxivCrawler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &ArxivCrawler{
		baseURL:   "https://export.arxiv.org/api/query",
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(3*time.Second), 2),
		userAgent: "paper-service/1.0",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchByID fetches a single paper by arXiv ID (e.g. "2401.00001").
func (c *ArxivCrawler) FetchByID(ctx context.Context, id string) (*model.CrawledPaper, error) {
	params := url.Values{}
	params.Set("id_list", id)
	params.Set("max_results", "1")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(feed.Entries) == 0 {
		zap.L().Warn("no paper found on arXiv", zap.String("id", id))
		return nil, nil
	}

	entry := feed.Entries[0]
	// arXiv returns a stub entry with no title when the ID doesn't exist.
	if strings.TrimSpace(entry.Title) == "" {
		zap.L().Warn("arXiv returned empty entry", zap.String("id", id))
		return nil, nil
	}

	paper := parseEntry(entry, id)
	zap.L().Info("fetched paper from arXiv", zap.String("title", paper.Title))
	return &paper, nil
}

// FetchRecent fetches papers published within the last daysBack days in any
// of the given categories. The feed is requested newest-first; the cutoff
// is re-checked locally because the API's own recency filtering cannot be
// relied on.
func (c *ArxivCrawler) FetchRecent(ctx context.Context, categories []string, maxResults, daysBack int) ([]model.CrawledPaper, error) {
	terms := make([]string, len(categories))
	for i, cat := range categories {
		terms[i] = "cat:" + cat
	}

	params := url.Values{}
	params.Set("search_query", strings.Join(terms, " OR "))
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	var papers []model.CrawledPaper
	for _, entry := range feed.Entries {
		published := parseTime(entry.Published)
		if published != nil && published.Before(cutoff) {
			continue
		}
		papers = append(papers, parseEntry(entry, ""))
	}

	zap.L().Info("fetched papers from arXiv",
		zap.Int("count", len(papers)),
		zap.Strings("categories", categories),
	)
	return papers, nil
}

func (c *ArxivCrawler) query(ctx context.Context, params url.Values) (*atomFeed, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arxiv: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: api request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("arxiv: api returned %d: %s", resp.StatusCode, string(body))
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, eris.Wrap(err, "arxiv: parse feed")
	}
	return &feed, nil
}

// parseEntry converts an Atom entry into a CrawledPaper, applying the
// canonical normalization rules. An explicit paperID always wins over the
// ID derived from the entry URL.
func parseEntry(entry atomEntry, paperID string) model.CrawledPaper {
	sourceID := paperID
	if sourceID == "" {
		sourceID = stripAbsPrefix(entry.ID)
	}

	var pdfURL string
	for _, link := range entry.Links {
		if link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}

	categories := make([]string, 0, len(entry.Categories))
	for _, cat := range entry.Categories {
		categories = append(categories, cat.Term)
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}

	return model.CrawledPaper{
		Source:      arxivSource,
		SourceID:    sourceID,
		Title:       strings.TrimSpace(strings.ReplaceAll(entry.Title, "\n", " ")),
		Abstract:    strings.TrimSpace(entry.Summary),
		PDFURL:      pdfURL,
		PublishedAt: parseTime(entry.Published),
		Categories:  categories,
		AuthorNames: authors,
	}
}

// stripAbsPrefix derives the canonical ID from an entry ID URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1").
func stripAbsPrefix(idURL string) string {
	const marker = "/abs/"
	if idx := strings.LastIndex(idURL, marker); idx >= 0 {
		return idURL[idx+len(marker):]
	}
	return idURL
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// arXiv Atom feed XML structures.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
	Authors    []atomAuthor   `xml:"author"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}
