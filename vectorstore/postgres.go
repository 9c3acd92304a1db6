package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, records []Record) (err error) {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, source := range sourcesOf(records) {
		if _, err = tx.Exec(ctx, "DELETE FROM rag_chunks WHERE source = $1", source); err != nil {
			return fmt.Errorf("clear existing chunks for %s: %w", source, err)
		}
	}

	for _, rec := range records {
		vec := pgvector.NewVector(rec.Vector)
		if _, err = tx.Exec(ctx, `
			INSERT INTO rag_chunks (id, source, page, chunk_index, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		`, rec.ID, rec.Metadata.Source, rec.Metadata.Page, rec.Metadata.ChunkIndex, rec.Metadata.Text, vec); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", rec.Metadata.ChunkIndex, rec.Metadata.Source, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		topK = 4
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := topK * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            id,
            source,
            page,
            chunk_index,
            content,
            (embedding <-> $1::vector) AS distance
        FROM rag_chunks
        ORDER BY embedding <-> $1::vector
        LIMIT $2
    `, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		var distance float64
		if scanErr := rows.Scan(&m.ID, &m.Metadata.Source, &m.Metadata.Page, &m.Metadata.ChunkIndex, &m.Metadata.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		m.Score = 1 / (1 + distance)
		matches = append(matches, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return matches, nil
}

func sourcesOf(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	sources := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Metadata.Source]; ok {
			continue
		}
		seen[rec.Metadata.Source] = struct{}{}
		sources = append(sources, rec.Metadata.Source)
	}
	return sources
}

var _ Store = (*PostgresStore)(nil)
