// Package postgres provides a PostgreSQL-backed vectorstore.Store using the
// pgvector extension with an HNSW index for fast approximate nearest-
// neighbour search.
//
// The pgvector extension must be available in the target database; [New]
// installs it automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, 768)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Upsert(ctx, passages)
//	results, _ := store.Query(ctx, queryEmbedding, 3)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// Ensure Store implements vectorstore.Store at compile time.
var _ vectorstore.Store = (*Store)(nil)

// Store is a PostgreSQL + pgvector implementation of vectorstore.Store.
// All methods are safe for concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// New connects to the database at dsn, installs the pgvector extension and
// the passages schema if missing, and returns a ready Store. dimensions is
// the embedding vector length and must match the embeddings provider in use.
func New(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("postgres vectorstore: dimensions must be positive, got %d", dimensions)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres vectorstore: connect: %w", err)
	}
	s := &Store{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// migrate installs the extension, table and HNSW index.
func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS passages (
    id         TEXT         PRIMARY KEY,
    text       TEXT         NOT NULL,
    source     TEXT         NOT NULL DEFAULT '',
    metadata   JSONB        NOT NULL DEFAULT '{}',
    embedding  vector(%d)   NOT NULL,
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_passages_source ON passages (source);

CREATE INDEX IF NOT EXISTS idx_passages_embedding
    ON passages USING hnsw (embedding vector_cosine_ops);
`, s.dimensions)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres vectorstore: migrate: %w", err)
	}
	return nil
}

// Upsert implements vectorstore.Store. Passages with an existing ID are
// completely replaced.
func (s *Store) Upsert(ctx context.Context, passages []vectorstore.Passage) error {
	const q = `
		INSERT INTO passages (id, text, source, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
		    text       = EXCLUDED.text,
		    source     = EXCLUDED.source,
		    metadata   = EXCLUDED.metadata,
		    embedding  = EXCLUDED.embedding,
		    updated_at = now()`

	for _, p := range passages {
		if len(p.Embedding) != s.dimensions {
			return fmt.Errorf("postgres vectorstore: upsert %q: embedding has %d dimensions, store expects %d",
				p.ID, len(p.Embedding), s.dimensions)
		}
		meta := p.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		if _, err := s.pool.Exec(ctx, q,
			p.ID,
			p.Text,
			p.Source,
			meta,
			pgvector.NewVector(p.Embedding),
		); err != nil {
			return fmt.Errorf("postgres vectorstore: upsert %q: %w", p.ID, err)
		}
	}
	return nil
}

// Query implements vectorstore.Store. Results are ordered by ascending
// cosine distance (most similar first).
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]vectorstore.Result, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("postgres vectorstore: query: embedding has %d dimensions, store expects %d",
			len(embedding), s.dimensions)
	}
	if topK <= 0 {
		return []vectorstore.Result{}, nil
	}

	const q = `
		SELECT id, text, source, metadata, embedding,
		       embedding <=> $1 AS distance
		FROM   passages
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres vectorstore: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vectorstore.Result, error) {
		var (
			res vectorstore.Result
			vec pgvector.Vector
		)
		if err := row.Scan(
			&res.Passage.ID,
			&res.Passage.Text,
			&res.Passage.Source,
			&res.Passage.Metadata,
			&vec,
			&res.Distance,
		); err != nil {
			return vectorstore.Result{}, err
		}
		res.Passage.Embedding = vec.Slice()
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres vectorstore: scan rows: %w", err)
	}
	if results == nil {
		results = []vectorstore.Result{}
	}
	return results, nil
}

// Count implements vectorstore.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres vectorstore: count: %w", err)
	}
	return n, nil
}
