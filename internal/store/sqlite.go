package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/paperdigest/paper-service/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and tests; Postgres is the production store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS papers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	source       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	title        TEXT NOT NULL,
	abstract     TEXT,
	pdf_url      TEXT,
	published_at DATETIME,
	categories   TEXT NOT NULL DEFAULT '[]',
	full_text    TEXT,
	summary      TEXT,
	contributions TEXT,
	keywords     TEXT,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source, source_id)
);

CREATE TABLE IF NOT EXISTS authors (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	affiliation TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS paper_authors (
	paper_id  INTEGER NOT NULL REFERENCES papers(id),
	author_id INTEGER NOT NULL REFERENCES authors(id),
	position  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (paper_id, author_id)
);

CREATE TABLE IF NOT EXISTS paper_translations (
	paper_id   INTEGER NOT NULL REFERENCES papers(id),
	language   TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (paper_id, language)
);

CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status);
CREATE INDEX IF NOT EXISTS idx_papers_published_at ON papers(published_at);
`

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteBatch implements Batch on a database/sql transaction.
type sqliteBatch struct {
	tx *sql.Tx
}

// BeginBatch opens the per-submission transaction.
func (s *SQLiteStore) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin batch")
	}
	return &sqliteBatch{tx: tx}, nil
}

func (b *sqliteBatch) Commit(context.Context) error {
	return eris.Wrap(b.tx.Commit(), "sqlite: commit batch")
}

func (b *sqliteBatch) Rollback(context.Context) error {
	err := b.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback batch")
	}
	return nil
}

// UpsertPaper inserts with INSERT OR IGNORE and reselects on conflict.
func (b *sqliteBatch) UpsertPaper(ctx context.Context, crawled model.CrawledPaper) (int64, bool, error) {
	categories, err := json.Marshal(orEmpty(crawled.Categories))
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: marshal categories")
	}

	res, err := b.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO papers (source, source_id, title, abstract, pdf_url, published_at, categories, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		crawled.Source, crawled.SourceID, crawled.Title,
		sqlNullString(crawled.Abstract), sqlNullString(crawled.PDFURL),
		sqlNullTime(crawled.PublishedAt), string(categories), string(model.StatusCrawled),
	)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: insert paper")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: rows affected")
	}

	if affected == 0 {
		var id int64
		err := b.tx.QueryRowContext(ctx,
			`SELECT id FROM papers WHERE source = ? AND source_id = ?`,
			crawled.Source, crawled.SourceID,
		).Scan(&id)
		if err != nil {
			return 0, false, eris.Wrap(err, "sqlite: reselect after conflict")
		}
		return id, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: last insert id")
	}

	for pos, name := range crawled.AuthorNames {
		if _, err := b.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO authors (name) VALUES (?)`, name); err != nil {
			return 0, false, eris.Wrapf(err, "sqlite: upsert author %s", name)
		}
		var authorID int64
		if err := b.tx.QueryRowContext(ctx,
			`SELECT id FROM authors WHERE name = ?`, name).Scan(&authorID); err != nil {
			return 0, false, eris.Wrapf(err, "sqlite: select author %s", name)
		}
		if _, err := b.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO paper_authors (paper_id, author_id, position) VALUES (?, ?, ?)`,
			id, authorID, pos); err != nil {
			return 0, false, eris.Wrap(err, "sqlite: link author")
		}
	}

	return id, true, nil
}

const sqlitePaperColumns = `id, source, source_id, title,
	COALESCE(abstract, ''), COALESCE(pdf_url, ''), published_at,
	COALESCE(categories, '[]'), COALESCE(full_text, ''), COALESCE(summary, ''),
	COALESCE(contributions, '[]'), COALESCE(keywords, '[]'),
	status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePaper(row rowScanner) (*model.Paper, error) {
	var (
		p             model.Paper
		publishedAt   sql.NullTime
		categories    string
		contributions string
		keywords      string
	)
	err := row.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.Title,
		&p.Abstract, &p.PDFURL, &publishedAt,
		&categories, &p.FullText, &p.Summary,
		&contributions, &keywords,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan paper")
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		p.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(categories), &p.Categories); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode categories")
	}
	if err := json.Unmarshal([]byte(contributions), &p.Contributions); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode contributions")
	}
	if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
		return nil, eris.Wrap(err, "sqlite: decode keywords")
	}
	return &p, nil
}

// GetPaper returns a paper with its authors and translations.
func (s *SQLiteStore) GetPaper(ctx context.Context, id int64) (*model.Paper, error) {
	p, err := scanSQLitePaper(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePaperColumns+` FROM papers WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPaperBySource returns a paper by its deduplication key.
func (s *SQLiteStore) GetPaperBySource(ctx context.Context, source, sourceID string) (*model.Paper, error) {
	p, err := scanSQLitePaper(s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePaperColumns+` FROM papers WHERE source = ? AND source_id = ?`,
		source, sourceID))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) loadAssociations(ctx context.Context, p *model.Paper) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.name, COALESCE(a.affiliation, '')
		 FROM authors a JOIN paper_authors pa ON pa.author_id = a.id
		 WHERE pa.paper_id = ? ORDER BY pa.position`, p.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: query authors")
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.Affiliation); err != nil {
			return eris.Wrap(err, "sqlite: scan author")
		}
		p.Authors = append(p.Authors, a)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: iterate authors")
	}

	trRows, err := s.db.QueryContext(ctx,
		`SELECT language, summary FROM paper_translations WHERE paper_id = ?`, p.ID)
	if err != nil {
		return eris.Wrap(err, "sqlite: query translations")
	}
	defer trRows.Close()
	for trRows.Next() {
		var lang, summary string
		if err := trRows.Scan(&lang, &summary); err != nil {
			return eris.Wrap(err, "sqlite: scan translation")
		}
		if p.Translations == nil {
			p.Translations = make(map[string]string)
		}
		p.Translations[lang] = summary
	}
	return eris.Wrap(trRows.Err(), "sqlite: iterate translations")
}

// ListPapers returns papers matching the filter, newest first. Category
// filtering matches against the JSON-encoded categories column.
func (s *SQLiteStore) ListPapers(ctx context.Context, filter PaperFilter) ([]model.Paper, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := `SELECT ` + sqlitePaperColumns + ` FROM papers WHERE 1=1`
	var args []any
	if filter.Category != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(papers.categories) WHERE json_each.value = ?)`
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY published_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list papers")
	}
	defer rows.Close()

	var papers []model.Paper
	for rows.Next() {
		p, err := scanSQLitePaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, eris.Wrap(rows.Err(), "sqlite: iterate papers")
}

// UpdateStatus sets the lifecycle status.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.PaperStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE papers SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), id)
	return eris.Wrap(err, "sqlite: update status")
}

// UpdateFullText stores extracted PDF text together with a status change.
func (s *SQLiteStore) UpdateFullText(ctx context.Context, id int64, fullText string, status model.PaperStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE papers SET full_text = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		fullText, string(status), id)
	return eris.Wrap(err, "sqlite: update full text")
}

// UpdateMetadata stores LLM extraction output together with a status change.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, id int64, meta model.ExtractedMetadata, status model.PaperStatus) error {
	contributions, err := json.Marshal(orEmpty(meta.Contributions))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contributions")
	}
	keywords, err := json.Marshal(orEmpty(meta.Keywords))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE papers SET summary = ?, contributions = ?, keywords = ?, status = ?, updated_at = datetime('now') WHERE id = ?`,
		meta.Summary, string(contributions), string(keywords), string(status), id)
	return eris.Wrap(err, "sqlite: update metadata")
}

// SaveTranslation stores one per-language summary translation.
func (s *SQLiteStore) SaveTranslation(ctx context.Context, id int64, language, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO paper_translations (paper_id, language, summary) VALUES (?, ?, ?)
		 ON CONFLICT (paper_id, language) DO UPDATE SET summary = excluded.summary`,
		id, language, summary)
	return eris.Wrap(err, "sqlite: save translation")
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func sqlNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
