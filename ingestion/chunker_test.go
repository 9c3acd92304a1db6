package ingestion_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/cropmind/cropmind/ingestion"
)

func TestChunkerCoversFullText(t *testing.T) {
	chunker, err := ingestion.NewChunker(50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := strings.Repeat("precision agriculture uses field sensors to guide irrigation decisions. ", 20)
	doc := ingestion.Document{ID: uuid.New(), Text: text}

	chunks := chunker.Split(doc)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Dropping each subsequent chunk's overlap prefix must reconstruct the
	// source exactly.
	rebuilt := chunks[0].Text
	for _, chunk := range chunks[1:] {
		runes := []rune(chunk.Text)
		if len(runes) <= 10 {
			t.Fatalf("chunk %d shorter than the overlap: %q", chunk.Index, chunk.Text)
		}
		rebuilt += string(runes[10:])
	}
	if rebuilt != text {
		t.Fatalf("reconstructed text does not match source (got %d runes, want %d)", len(rebuilt), len(text))
	}
}

func TestChunkerRespectsSizeBound(t *testing.T) {
	chunker, err := ingestion.NewChunker(80, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := strings.Repeat("soil moisture probes report hourly readings. ", 30)
	chunks := chunker.Split(ingestion.Document{ID: uuid.New(), Text: text})

	for _, chunk := range chunks {
		if got := len([]rune(chunk.Text)); got > 80 {
			t.Fatalf("chunk %d has %d runes, want at most 80", chunk.Index, got)
		}
	}
}

func TestChunkerOrdersAndInheritsMetadata(t *testing.T) {
	chunker, err := ingestion.NewChunker(40, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := ingestion.Document{
		ID:       uuid.New(),
		Text:     strings.Repeat("drip lines cut water use by half. ", 10),
		Metadata: ingestion.Metadata{SourcePath: "guides/irrigation.pdf", Page: 3},
	}

	chunks := chunker.Split(doc)
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk at position %d has index %d", i, chunk.Index)
		}
		if chunk.DocumentID != doc.ID {
			t.Fatalf("chunk %d does not reference its parent document", i)
		}
		if chunk.Metadata != doc.Metadata {
			t.Fatalf("chunk %d lost its metadata: %+v", i, chunk.Metadata)
		}
	}
}

func TestChunkerShortDocumentYieldsOneChunk(t *testing.T) {
	chunker, err := ingestion.NewChunker(1000, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := chunker.Split(ingestion.Document{ID: uuid.New(), Text: "short note"})
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short note" {
		t.Fatalf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestChunkerEmptyDocumentYieldsNoChunks(t *testing.T) {
	chunker, err := ingestion.NewChunker(100, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chunks := chunker.Split(ingestion.Document{ID: uuid.New(), Text: "  \n\t "}); len(chunks) != 0 {
		t.Fatalf("expected no chunks for blank content, got %d", len(chunks))
	}
}

func TestNewChunkerRejectsBadParameters(t *testing.T) {
	if _, err := ingestion.NewChunker(0, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := ingestion.NewChunker(100, 100); err == nil {
		t.Fatal("expected error for overlap equal to size")
	}
	if _, err := ingestion.NewChunker(100, -1); err == nil {
		t.Fatal("expected error for negative overlap")
	}
}
