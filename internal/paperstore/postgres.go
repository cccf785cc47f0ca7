package paperstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the papers table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS papers (
    topic      TEXT NOT NULL,
    paper_id   TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    authors    JSONB NOT NULL DEFAULT '[]',
    summary    TEXT NOT NULL DEFAULT '',
    pdf_url    TEXT NOT NULL DEFAULT '',
    published  TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (topic, paper_id)
);
CREATE INDEX IF NOT EXISTS idx_papers_paper_id ON papers(paper_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database, keeping one row
// per (topic, paper_id) pair.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the papers
// table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("paperstore: migrate: %w", err)
	}
	return nil
}

// Upsert merges records into the topic's partition. Each record is inserted or
// replaced individually, so re-storing an existing paper updates its metadata
// without touching other rows.
func (s *PostgresStore) Upsert(ctx context.Context, topic string, records []PaperRecord) error {
	norm := NormalizeTopic(topic)

	const query = `
		INSERT INTO papers (topic, paper_id, title, authors, summary, pdf_url, published)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (topic, paper_id) DO UPDATE SET
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			summary = EXCLUDED.summary,
			pdf_url = EXCLUDED.pdf_url,
			published = EXCLUDED.published,
			updated_at = now()`

	for _, r := range records {
		authorsJSON, err := json.Marshal(emptySlice(r.Authors))
		if err != nil {
			return fmt.Errorf("paperstore: marshal authors: %w", err)
		}
		if _, err := s.db.Exec(ctx, query,
			norm, r.PaperID, r.Title, authorsJSON, r.Summary, r.PDFURL, r.Published,
		); err != nil {
			return fmt.Errorf("paperstore: upsert %q into %q: %w", r.PaperID, norm, err)
		}
	}
	return nil
}

// Find returns the stored record for the given paper ID. Where the same ID
// exists in multiple partitions, the lexicographically first topic wins.
func (s *PostgresStore) Find(ctx context.Context, paperID string) (*PaperRecord, error) {
	const query = `
		SELECT paper_id, title, authors, summary, pdf_url, published
		FROM papers
		WHERE paper_id = $1
		ORDER BY topic
		LIMIT 1`

	var r PaperRecord
	var authorsJSON []byte
	err := s.db.QueryRow(ctx, query, paperID).Scan(
		&r.PaperID, &r.Title, &authorsJSON, &r.Summary, &r.PDFURL, &r.Published,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("paperstore: find %q: %w", paperID, err)
	}
	if err := json.Unmarshal(authorsJSON, &r.Authors); err != nil {
		return nil, fmt.Errorf("paperstore: unmarshal authors: %w", err)
	}
	return &r, nil
}

// Topics returns all distinct partition names in lexicographic order.
func (s *PostgresStore) Topics(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT topic FROM papers ORDER BY topic`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("paperstore: topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("paperstore: topics scan: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paperstore: topics: %w", err)
	}
	return topics, nil
}

// Papers returns all records in the topic's partition ordered by paper ID.
func (s *PostgresStore) Papers(ctx context.Context, topic string) ([]PaperRecord, error) {
	norm := NormalizeTopic(topic)

	const query = `
		SELECT paper_id, title, authors, summary, pdf_url, published
		FROM papers
		WHERE topic = $1
		ORDER BY paper_id`

	rows, err := s.db.Query(ctx, query, norm)
	if err != nil {
		return nil, fmt.Errorf("paperstore: papers %q: %w", norm, err)
	}
	defer rows.Close()

	var records []PaperRecord
	for rows.Next() {
		var r PaperRecord
		var authorsJSON []byte
		if err := rows.Scan(&r.PaperID, &r.Title, &authorsJSON, &r.Summary, &r.PDFURL, &r.Published); err != nil {
			return nil, fmt.Errorf("paperstore: papers scan: %w", err)
		}
		if err := json.Unmarshal(authorsJSON, &r.Authors); err != nil {
			return nil, fmt.Errorf("paperstore: unmarshal authors: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paperstore: papers %q: %w", norm, err)
	}
	if records == nil {
		return nil, ErrNotFound
	}
	return records, nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice. This
// ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
