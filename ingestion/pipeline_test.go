package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/cropmind/cropmind/embeddings"
	"github.com/cropmind/cropmind/ingestion"
	"github.com/cropmind/cropmind/vectorstore"
)

type stubEmbedder struct {
	dimension int
	err       error
	calls     int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dimension)
		vec[0] = float32(len(text))
		vectors[i] = vec
	}
	return vectors, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestPipeline(t *testing.T, embedder embeddings.Embedder, store vectorstore.Store) *ingestion.Pipeline {
	t.Helper()
	chunker, err := ingestion.NewChunker(200, 40)
	if err != nil {
		t.Fatalf("chunker setup: %v", err)
	}
	return ingestion.NewPipeline(ingestion.FSLoader{}, chunker, embedder, store, discardLogger())
}

func TestIngestSkipsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Drip Irrigation\n\nDrip irrigation delivers water directly to the root zone.")
	writeFile(t, dir, "b.md", "# Sensors\n\nSoil moisture probes report hourly readings.")
	writeFile(t, dir, "c.txt", "Greenhouse climate control basics.")
	writeFile(t, dir, "broken.pdf", "this is not a pdf payload")

	store := vectorstore.NewMemoryStore(4)
	pipeline := newTestPipeline(t, &stubEmbedder{dimension: 4}, store)

	summary, err := pipeline.Ingest(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.DocumentsLoaded != 3 {
		t.Fatalf("expected 3 documents loaded, got %d", summary.DocumentsLoaded)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(summary.Errors))
	}
	if summary.ChunksStored != summary.ChunksCreated || summary.ChunksStored == 0 {
		t.Fatalf("expected all created chunks stored, got created=%d stored=%d", summary.ChunksCreated, summary.ChunksStored)
	}
	if store.Len() != summary.ChunksStored {
		t.Fatalf("store holds %d records, summary says %d", store.Len(), summary.ChunksStored)
	}
}

func TestIngestFailsWhenNothingLoads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "still not a pdf")

	pipeline := newTestPipeline(t, &stubEmbedder{dimension: 4}, vectorstore.NewMemoryStore(4))

	summary, err := pipeline.Ingest(context.Background(), dir)
	if err == nil {
		t.Fatal("expected error when zero documents load")
	}
	if summary.DocumentsLoaded != 0 {
		t.Fatalf("expected 0 documents loaded, got %d", summary.DocumentsLoaded)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(summary.Errors))
	}
}

func TestIngestFailsOnEmptyDirectory(t *testing.T) {
	pipeline := newTestPipeline(t, &stubEmbedder{dimension: 4}, vectorstore.NewMemoryStore(4))

	if _, err := pipeline.Ingest(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for a directory with no ingestible documents")
	}
}

func TestIngestAbortsOnDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# One\n\nfirst document")
	writeFile(t, dir, "b.md", "# Two\n\nsecond document")

	embedder := &stubEmbedder{
		dimension: 4,
		err:       fmt.Errorf("create openai embeddings: %w", embeddings.ErrDimensionMismatch),
	}
	pipeline := newTestPipeline(t, embedder, vectorstore.NewMemoryStore(4))

	summary, err := pipeline.Ingest(context.Background(), dir)
	if !errors.Is(err, embeddings.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch to abort the run, got %v", err)
	}
	// The first failing document must stop the run instead of being skipped.
	if embedder.calls != 1 {
		t.Fatalf("expected a single embed call before aborting, got %d", embedder.calls)
	}
	if len(summary.Errors) != 0 {
		t.Fatalf("a fatal error must not be recorded as a per-document error, got %d", len(summary.Errors))
	}
}

func TestIngestHonorsCancellationBetweenDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# One\n\nfirst document")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline := newTestPipeline(t, &stubEmbedder{dimension: 4}, vectorstore.NewMemoryStore(4))

	summary, err := pipeline.Ingest(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.DocumentsLoaded != 0 {
		t.Fatalf("expected no documents processed after cancellation, got %d", summary.DocumentsLoaded)
	}
}

func TestIngestReplacesSourceOnReingest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Guide\n\noriginal content about drip irrigation")

	store := vectorstore.NewMemoryStore(4)
	pipeline := newTestPipeline(t, &stubEmbedder{dimension: 4}, store)

	if _, err := pipeline.Ingest(context.Background(), dir); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	first := store.Len()

	if _, err := pipeline.Ingest(context.Background(), dir); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if store.Len() != first {
		t.Fatalf("re-ingest duplicated records: %d -> %d", first, store.Len())
	}
}
