package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/paperdigest/paper-service/internal/db"
	"github.com/paperdigest/paper-service/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests with pgxmock).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS papers (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	source       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	title        TEXT NOT NULL,
	abstract     TEXT,
	pdf_url      TEXT,
	published_at TIMESTAMPTZ,
	categories   TEXT[] NOT NULL DEFAULT '{}',
	full_text    TEXT,
	summary      TEXT,
	contributions TEXT[],
	keywords     TEXT[],
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_paper_source UNIQUE (source, source_id)
);

CREATE TABLE IF NOT EXISTS authors (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	affiliation TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS paper_authors (
	paper_id  BIGINT NOT NULL REFERENCES papers(id),
	author_id BIGINT NOT NULL REFERENCES authors(id),
	position  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (paper_id, author_id)
);

CREATE TABLE IF NOT EXISTS paper_translations (
	paper_id   BIGINT NOT NULL REFERENCES papers(id),
	language   TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (paper_id, language)
);

CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status);
CREATE INDEX IF NOT EXISTS idx_papers_published_at ON papers(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_paper_authors_paper_id ON paper_authors(paper_id);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgBatch implements Batch on a pgx transaction.
type pgBatch struct {
	tx pgx.Tx
}

// BeginBatch opens the per-submission transaction.
func (s *PostgresStore) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin batch")
	}
	return &pgBatch{tx: tx}, nil
}

func (b *pgBatch) Commit(ctx context.Context) error {
	return eris.Wrap(b.tx.Commit(ctx), "postgres: commit batch")
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback batch")
	}
	return nil
}

// UpsertPaper inserts the paper with ON CONFLICT DO NOTHING and reselects
// on conflict, so a unique-constraint race with a concurrent submission of
// the same key reports duplicate instead of failing.
func (b *pgBatch) UpsertPaper(ctx context.Context, crawled model.CrawledPaper) (int64, bool, error) {
	categories := crawled.Categories
	if categories == nil {
		categories = []string{}
	}

	var id int64
	err := b.tx.QueryRow(ctx,
		`INSERT INTO papers (source, source_id, title, abstract, pdf_url, published_at, categories, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (source, source_id) DO NOTHING
		 RETURNING id`,
		crawled.Source, crawled.SourceID, crawled.Title,
		nullIfEmpty(crawled.Abstract), nullIfEmpty(crawled.PDFURL),
		crawled.PublishedAt, categories, string(model.StatusCrawled),
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: the row already exists (possibly inserted by a
		// concurrent batch). Return it unmodified.
		selErr := b.tx.QueryRow(ctx,
			`SELECT id FROM papers WHERE source = $1 AND source_id = $2`,
			crawled.Source, crawled.SourceID,
		).Scan(&id)
		if selErr != nil {
			return 0, false, eris.Wrap(selErr, "postgres: reselect after conflict")
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: insert paper")
	}

	for pos, name := range crawled.AuthorNames {
		var authorID int64
		err := b.tx.QueryRow(ctx,
			`INSERT INTO authors (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			name,
		).Scan(&authorID)
		if err != nil {
			return 0, false, eris.Wrapf(err, "postgres: upsert author %s", name)
		}

		if _, err := b.tx.Exec(ctx,
			`INSERT INTO paper_authors (paper_id, author_id, position) VALUES ($1, $2, $3)
			 ON CONFLICT (paper_id, author_id) DO NOTHING`,
			id, authorID, pos,
		); err != nil {
			return 0, false, eris.Wrap(err, "postgres: link author")
		}
	}

	return id, true, nil
}

const paperColumns = `id, source, source_id, title,
	COALESCE(abstract, ''), COALESCE(pdf_url, ''), published_at,
	COALESCE(categories, '{}'), COALESCE(full_text, ''), COALESCE(summary, ''),
	COALESCE(contributions, '{}'), COALESCE(keywords, '{}'),
	status, created_at, updated_at`

func scanPaper(row pgx.Row) (*model.Paper, error) {
	var p model.Paper
	err := row.Scan(
		&p.ID, &p.Source, &p.SourceID, &p.Title,
		&p.Abstract, &p.PDFURL, &p.PublishedAt,
		&p.Categories, &p.FullText, &p.Summary,
		&p.Contributions, &p.Keywords,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan paper")
	}
	return &p, nil
}

// GetPaper returns a paper with its authors and translations.
func (s *PostgresStore) GetPaper(ctx context.Context, id int64) (*model.Paper, error) {
	p, err := scanPaper(s.pool.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPaperBySource returns a paper by its deduplication key.
func (s *PostgresStore) GetPaperBySource(ctx context.Context, source, sourceID string) (*model.Paper, error) {
	p, err := scanPaper(s.pool.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE source = $1 AND source_id = $2`,
		source, sourceID))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) loadAssociations(ctx context.Context, p *model.Paper) error {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.name, COALESCE(a.affiliation, '')
		 FROM authors a JOIN paper_authors pa ON pa.author_id = a.id
		 WHERE pa.paper_id = $1 ORDER BY pa.position`,
		p.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: query authors")
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.Affiliation); err != nil {
			return eris.Wrap(err, "postgres: scan author")
		}
		p.Authors = append(p.Authors, a)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: iterate authors")
	}

	trRows, err := s.pool.Query(ctx,
		`SELECT language, summary FROM paper_translations WHERE paper_id = $1`, p.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: query translations")
	}
	defer trRows.Close()
	for trRows.Next() {
		var lang, summary string
		if err := trRows.Scan(&lang, &summary); err != nil {
			return eris.Wrap(err, "postgres: scan translation")
		}
		if p.Translations == nil {
			p.Translations = make(map[string]string)
		}
		p.Translations[lang] = summary
	}
	return eris.Wrap(trRows.Err(), "postgres: iterate translations")
}

// ListPapers returns papers matching the filter, newest first.
func (s *PostgresStore) ListPapers(ctx context.Context, filter PaperFilter) ([]model.Paper, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	query := `SELECT ` + paperColumns + ` FROM papers WHERE 1=1`
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND $1 = ANY(categories)`
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		if filter.Category != "" {
			query += ` AND status = $2`
		} else {
			query += ` AND status = $1`
		}
	}
	query += ` ORDER BY published_at DESC NULLS LAST`
	args = append(args, pageSize, (page-1)*pageSize)
	switch len(args) {
	case 2:
		query += ` LIMIT $1 OFFSET $2`
	case 3:
		query += ` LIMIT $2 OFFSET $3`
	case 4:
		query += ` LIMIT $3 OFFSET $4`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list papers")
	}
	defer rows.Close()

	var papers []model.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, eris.Wrap(rows.Err(), "postgres: iterate papers")
}

// UpdateStatus sets the lifecycle status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status model.PaperStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE papers SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id)
	return eris.Wrap(err, "postgres: update status")
}

// UpdateFullText stores extracted PDF text together with a status change.
func (s *PostgresStore) UpdateFullText(ctx context.Context, id int64, fullText string, status model.PaperStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE papers SET full_text = $1, status = $2, updated_at = now() WHERE id = $3`,
		fullText, string(status), id)
	return eris.Wrap(err, "postgres: update full text")
}

// UpdateMetadata stores LLM extraction output together with a status change.
func (s *PostgresStore) UpdateMetadata(ctx context.Context, id int64, meta model.ExtractedMetadata, status model.PaperStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE papers SET summary = $1, contributions = $2, keywords = $3, status = $4, updated_at = now() WHERE id = $5`,
		meta.Summary, meta.Contributions, meta.Keywords, string(status), id)
	return eris.Wrap(err, "postgres: update metadata")
}

// SaveTranslation stores one per-language summary translation.
func (s *PostgresStore) SaveTranslation(ctx context.Context, id int64, language, summary string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO paper_translations (paper_id, language, summary) VALUES ($1, $2, $3)
		 ON CONFLICT (paper_id, language) DO UPDATE SET summary = EXCLUDED.summary`,
		id, language, summary)
	return eris.Wrap(err, "postgres: save translation")
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
