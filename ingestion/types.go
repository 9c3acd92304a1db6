// Package ingestion converts raw source documents into embedded, indexed
// chunks: load, normalize, split, embed, store.
package ingestion

import "github.com/google/uuid"

// Metadata travels from a document into every chunk derived from it.
type Metadata struct {
	SourcePath string
	Page       int
	Title      string
}

// Document is a transient unit of raw text. Page-oriented formats produce
// one Document per page.
type Document struct {
	ID       uuid.UUID
	Text     string
	Metadata Metadata
}

// Chunk is a bounded slice of a single document, ordered by Index.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Text       string
	Metadata   Metadata
}
