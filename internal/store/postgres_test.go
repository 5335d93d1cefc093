package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdigest/paper-service/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func samplePaper() model.CrawledPaper {
	published := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	return model.CrawledPaper{
		Source:      "arxiv",
		SourceID:    "2401.00001",
		Title:       "A Sample Paper",
		Abstract:    "About things.",
		PDFURL:      "http://arxiv.org/pdf/2401.00001v1",
		PublishedAt: &published,
		Categories:  []string{"cs.AI"},
		AuthorNames: []string{"Ada Lovelace", "Alan Turing"},
	}
}

func TestUpsertPaperInsertsNewRow(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO papers`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery(`INSERT INTO authors`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`INSERT INTO paper_authors`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO authors`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectExec(`INSERT INTO paper_authors`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	batch, err := st.BeginBatch(ctx)
	require.NoError(t, err)

	id, created, err := batch.UpsertPaper(ctx, samplePaper())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, created)

	require.NoError(t, batch.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPaperConflictReselects(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO papers`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT id FROM papers WHERE source`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	batch, err := st.BeginBatch(ctx)
	require.NoError(t, err)

	id, created, err := batch.UpsertPaper(ctx, samplePaper())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.False(t, created)

	require.NoError(t, batch.Commit(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRollbackAfterCommitIsQuiet(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	batch, err := st.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.Commit(ctx))
	assert.NoError(t, batch.Rollback(ctx))
}

func paperRows() *pgxmock.Rows {
	now := time.Now().UTC()
	published := now.Add(-24 * time.Hour)
	return pgxmock.NewRows([]string{
		"id", "source", "source_id", "title", "abstract", "pdf_url",
		"published_at", "categories", "full_text", "summary",
		"contributions", "keywords", "status", "created_at", "updated_at",
	}).AddRow(
		int64(1), "arxiv", "2401.00001", "A Sample Paper", "About things.",
		"http://arxiv.org/pdf/2401.00001v1", &published, []string{"cs.AI"},
		"full text", "a summary", []string{"c1"}, []string{"k1", "k2"},
		model.StatusReady, now, now,
	)
}

func TestGetPaper(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM papers WHERE id`).
		WithArgs(int64(1)).
		WillReturnRows(paperRows())
	mock.ExpectQuery(`FROM authors a JOIN paper_authors`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "affiliation"}).
			AddRow(int64(7), "Ada Lovelace", ""))
	mock.ExpectQuery(`SELECT language, summary FROM paper_translations`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"language", "summary"}).
			AddRow("zh", "中文摘要"))

	paper, err := st.GetPaper(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, "A Sample Paper", paper.Title)
	assert.Equal(t, model.StatusReady, paper.Status)
	assert.Equal(t, []string{"k1", "k2"}, paper.Keywords)
	require.Len(t, paper.Authors, 1)
	assert.Equal(t, "Ada Lovelace", paper.Authors[0].Name)
	assert.Equal(t, "中文摘要", paper.Translations["zh"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaperNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`FROM papers WHERE id`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetPaper(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE papers SET status`).
		WithArgs("parsed", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateStatus(context.Background(), 1, model.StatusParsed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMetadata(t *testing.T) {
	st, mock := newMockStore(t)

	meta := model.ExtractedMetadata{
		Summary:       "a summary",
		Contributions: []string{"c1"},
		Keywords:      []string{"k1"},
	}
	mock.ExpectExec(`UPDATE papers SET summary`).
		WithArgs("a summary", []string{"c1"}, []string{"k1"}, "analyzed", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateMetadata(context.Background(), 1, meta, model.StatusAnalyzed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTranslation(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO paper_translations`).
		WithArgs(int64(1), "zh", "中文").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveTranslation(context.Background(), 1, "zh", "中文"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPapersFilters(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`FROM papers WHERE 1=1 AND .+ = ANY\(categories\) AND status`).
		WithArgs("cs.AI", "ready", 20, 0).
		WillReturnRows(paperRows())

	papers, err := st.ListPapers(context.Background(), PaperFilter{Category: "cs.AI", Status: "ready"})
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Equal(t, int64(1), papers[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
