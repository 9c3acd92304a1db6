// Package database manages the Postgres connection pool and the pgvector
// index schema.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the chunk index if it does not exist and verifies
// that an existing index was created with the same embedding dimension.
// A dimension mismatch is a misconfiguration the caller must not retry.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stored, err := storedDimension(ctx, pool)
	if err != nil {
		return err
	}
	if stored > 0 && stored != dimension {
		return fmt.Errorf("index created with dimension %d, configured dimension is %d", stored, dimension)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_chunks (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			page INT NOT NULL DEFAULT 0,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(source, page, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_rag_chunks_source ON rag_chunks(source)",
		"CREATE INDEX IF NOT EXISTS idx_rag_chunks_embedding ON rag_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// storedDimension reads the dimension the embedding column was declared
// with, or 0 when the table does not exist yet. For vector columns the
// type modifier is the dimension itself.
func storedDimension(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	rows, err := pool.Query(ctx, `
		SELECT a.atttypmod
		FROM pg_attribute a
		WHERE a.attrelid = to_regclass('public.rag_chunks')
		  AND a.attname = 'embedding'
	`)
	if err != nil {
		return 0, fmt.Errorf("inspect stored dimension: %w", err)
	}
	defer rows.Close()

	dimension := 0
	for rows.Next() {
		if err := rows.Scan(&dimension); err != nil {
			return 0, fmt.Errorf("scan stored dimension: %w", err)
		}
	}
	if rows.Err() != nil {
		return 0, rows.Err()
	}
	return dimension, nil
}

// Clear removes every record from the chunk index.
func Clear(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "TRUNCATE rag_chunks"); err != nil {
		return fmt.Errorf("truncate rag_chunks: %w", err)
	}
	return nil
}
