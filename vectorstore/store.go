// Package vectorstore persists embedding vectors with their chunk metadata
// and serves similarity queries over them.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Metadata is the per-record payload stored next to each vector. It is the
// only durable representation of a chunk.
type Metadata struct {
	Source     string
	Page       int
	ChunkIndex int
	Text       string
}

type Record struct {
	ID       uuid.UUID
	Vector   []float32
	Metadata Metadata
}

type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Store is the persistence contract consumed by ingestion and retrieval.
// Upsert replaces any previously stored records for the sources present in
// the batch, so re-ingesting a document rebuilds its slice of the index.
// Query returns at most topK matches ordered by descending score.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}
