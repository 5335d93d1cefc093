package submit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdigest/paper-service/internal/crawler"
	"github.com/paperdigest/paper-service/internal/model"
	"github.com/paperdigest/paper-service/internal/store"
)

// fakeCrawler serves canned papers keyed by ID. IDs in failIDs error; IDs
// absent from papers report not found.
type fakeCrawler struct {
	papers  map[string]*model.CrawledPaper
	failIDs map[string]bool
	fetches []string
}

func (c *fakeCrawler) FetchByID(_ context.Context, id string) (*model.CrawledPaper, error) {
	c.fetches = append(c.fetches, id)
	if c.failIDs[id] {
		return nil, errors.New("connection reset by peer")
	}
	return c.papers[id], nil
}

func (c *fakeCrawler) FetchRecent(context.Context, []string, int, int) ([]model.CrawledPaper, error) {
	return nil, nil
}

// fakeStore records upserts in memory and tracks transaction lifecycle.
type fakeStore struct {
	store.Store
	papers     map[string]int64
	nextID     int64
	commits    int
	rollbacks  int
	upsertFail map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{papers: map[string]int64{}, nextID: 1, upsertFail: map[string]bool{}}
}

func (s *fakeStore) BeginBatch(context.Context) (store.Batch, error) {
	return &fakeBatch{store: s}, nil
}

type fakeBatch struct {
	store *fakeStore
}

func (b *fakeBatch) UpsertPaper(_ context.Context, crawled model.CrawledPaper) (int64, bool, error) {
	if b.store.upsertFail[crawled.SourceID] {
		return 0, false, errors.New("constraint violation")
	}
	key := crawled.Source + "/" + crawled.SourceID
	if id, ok := b.store.papers[key]; ok {
		return id, false, nil
	}
	id := b.store.nextID
	b.store.nextID++
	b.store.papers[key] = id
	return id, true, nil
}

func (b *fakeBatch) Commit(context.Context) error {
	b.store.commits++
	return nil
}

func (b *fakeBatch) Rollback(context.Context) error {
	b.store.rollbacks++
	return nil
}

func paper(id, title string) *model.CrawledPaper {
	return &model.CrawledPaper{Source: "arxiv", SourceID: id, Title: title}
}

func newTestService(c *fakeCrawler, st *fakeStore) *Service {
	reg := crawler.NewRegistry(map[string]crawler.Crawler{"arxiv": c})
	return NewService(reg, st)
}

func TestSubmitQueuesNewPapers(t *testing.T) {
	c := &fakeCrawler{papers: map[string]*model.CrawledPaper{
		"2401.00001": paper("2401.00001", "First Paper"),
		"2401.00002": paper("2401.00002", "Second Paper"),
	}}
	st := newFakeStore()

	results, err := newTestService(c, st).Submit(context.Background(), "arxiv", []string{"2401.00001", "2401.00002"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, model.SubmissionQueued, results[0].Status)
	assert.Equal(t, "Paper queued for processing: First Paper", results[0].Message)
	assert.Equal(t, int64(1), results[0].PaperID)
	assert.Equal(t, model.SubmissionQueued, results[1].Status)
	assert.Equal(t, 1, st.commits)
}

func TestSubmitReportsDuplicates(t *testing.T) {
	c := &fakeCrawler{papers: map[string]*model.CrawledPaper{
		"2401.00001": paper("2401.00001", "First Paper"),
	}}
	st := newFakeStore()
	svc := newTestService(c, st)

	_, err := svc.Submit(context.Background(), "arxiv", []string{"2401.00001"})
	require.NoError(t, err)

	results, err := svc.Submit(context.Background(), "arxiv", []string{"2401.00001"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SubmissionDuplicate, results[0].Status)
	assert.Equal(t, int64(1), results[0].PaperID)
	assert.Equal(t, "Paper already exists (id=1)", results[0].Message)
}

func TestSubmitPartialFailureIsolation(t *testing.T) {
	c := &fakeCrawler{
		papers:  map[string]*model.CrawledPaper{"good": paper("good", "Good Paper")},
		failIDs: map[string]bool{"broken": true},
	}
	st := newFakeStore()

	results, err := newTestService(c, st).Submit(context.Background(), "arxiv",
		[]string{"good", "unknown", "broken"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Results preserve submission order.
	assert.Equal(t, "good", results[0].SourceID)
	assert.Equal(t, model.SubmissionQueued, results[0].Status)

	assert.Equal(t, "unknown", results[1].SourceID)
	assert.Equal(t, model.SubmissionNotFound, results[1].Status)

	assert.Equal(t, "broken", results[2].SourceID)
	assert.Equal(t, model.SubmissionError, results[2].Status)
	assert.Equal(t, "Failed to fetch paper broken from arxiv", results[2].Message)

	// One ID failing never aborts the batch.
	assert.Equal(t, 1, st.commits)
	assert.Equal(t, []string{"good", "unknown", "broken"}, c.fetches)
}

func TestSubmitUpsertErrorIsPerID(t *testing.T) {
	c := &fakeCrawler{papers: map[string]*model.CrawledPaper{
		"a": paper("a", "A"),
		"b": paper("b", "B"),
	}}
	st := newFakeStore()
	st.upsertFail["a"] = true

	results, err := newTestService(c, st).Submit(context.Background(), "arxiv", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.SubmissionError, results[0].Status)
	assert.Equal(t, model.SubmissionQueued, results[1].Status)
}

func TestSubmitUnsupportedSourceFetchesNothing(t *testing.T) {
	c := &fakeCrawler{}
	st := newFakeStore()

	_, err := newTestService(c, st).Submit(context.Background(), "pubmed", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported paper source: pubmed")
	assert.Empty(t, c.fetches)
	assert.Equal(t, 0, st.commits)
}
