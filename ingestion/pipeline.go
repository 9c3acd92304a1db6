package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/cropmind/cropmind/embeddings"
	"github.com/cropmind/cropmind/vectorstore"
)

const defaultEmbedBatchSize = 50

// Summary reports the outcome of one ingestion run.
type Summary struct {
	DocumentsLoaded int
	ChunksCreated   int
	ChunksStored    int
	Errors          []DocumentError
}

// DocumentError records a single document that failed to ingest without
// failing the run.
type DocumentError struct {
	Path string
	Err  error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Pipeline drives load → normalize → chunk → embed → store over a source
// directory. Documents are processed sequentially; a failed document is
// recorded and skipped, and the run succeeds as long as at least one
// document made it through.
type Pipeline struct {
	loader     Loader
	normalizer Normalizer
	chunker    *Chunker
	embedder   embeddings.Embedder
	store      vectorstore.Store
	logger     *log.Logger
	batchSize  int
}

func NewPipeline(loader Loader, chunker *Chunker, embedder embeddings.Embedder, store vectorstore.Store, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		batchSize: defaultEmbedBatchSize,
	}
}

// SetBatchSize overrides the number of chunks embedded per client call.
func (p *Pipeline) SetBatchSize(n int) {
	if n > 0 {
		p.batchSize = n
	}
}

func (p *Pipeline) Ingest(ctx context.Context, dir string) (*Summary, error) {
	summary := &Summary{}

	if p.embedder == nil {
		return summary, fmt.Errorf("embedder not configured")
	}
	if p.store == nil {
		return summary, fmt.Errorf("vector store not configured")
	}
	if p.chunker == nil {
		return summary, fmt.Errorf("chunker not configured")
	}

	if _, err := os.Stat(dir); err != nil {
		return summary, fmt.Errorf("data directory: %w", err)
	}

	paths, err := discover(dir)
	if err != nil {
		return summary, fmt.Errorf("walk data directory: %w", err)
	}
	if len(paths) == 0 {
		return summary, fmt.Errorf("no ingestible documents in %s", dir)
	}

	for _, path := range paths {
		// Cancellation is honored between documents, never mid-document.
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := p.ingestFile(ctx, dir, path, summary); err != nil {
			if errors.Is(err, embeddings.ErrDimensionMismatch) {
				return summary, fmt.Errorf("ingest %s: %w", path, err)
			}
			summary.Errors = append(summary.Errors, DocumentError{Path: path, Err: err})
			p.logger.Printf("ingest failed for %s: %v", path, err)
		}
	}

	if summary.DocumentsLoaded == 0 {
		return summary, fmt.Errorf("no documents ingested from %s", dir)
	}

	return summary, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, root, path string, summary *Summary) error {
	docs, err := p.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	relPath, relErr := filepath.Rel(root, path)
	if relErr != nil {
		relPath = path
	}

	chunks := make([]Chunk, 0)
	for _, doc := range docs {
		doc.Metadata.SourcePath = relPath
		doc = p.normalizer.Normalize(doc)
		chunks = append(chunks, p.chunker.Split(doc)...)
	}

	if len(chunks) == 0 {
		p.logger.Printf("skip empty document %s", relPath)
		summary.DocumentsLoaded++
		return nil
	}
	summary.ChunksCreated += len(chunks)

	records := make([]vectorstore.Record, 0, len(chunks))
	for batchStart := 0; batchStart < len(chunks); batchStart += p.batchSize {
		batchEnd := batchStart + p.batchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("generate embeddings: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(batch), len(vectors))
		}

		for i, chunk := range batch {
			records = append(records, vectorstore.Record{
				ID:     chunk.ID,
				Vector: vectors[i],
				Metadata: vectorstore.Metadata{
					Source:     chunk.Metadata.SourcePath,
					Page:       chunk.Metadata.Page,
					ChunkIndex: chunk.Index,
					Text:       chunk.Text,
				},
			})
		}
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	summary.DocumentsLoaded++
	summary.ChunksStored += len(records)
	p.logger.Printf("ingested %s (%d chunks)", relPath, len(records))
	return nil
}

func discover(dir string) ([]string, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
