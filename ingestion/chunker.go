package ingestion

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Chunker splits a document into overlapping windows of at most Size runes.
// Consecutive chunks share exactly Overlap runes, so the chunk sequence
// covers the source text with no gaps.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d for size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Split(doc Document) []Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	chunks := make([]Chunk, 0, len(runes)/c.size+1)

	start := 0
	for {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.softBreak(runes, start, end)
		}

		chunks = append(chunks, Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
			Metadata:   doc.Metadata,
		})

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// softBreak backs the cut position up to the nearest whitespace so chunks
// end on a word boundary. The cut never moves past the overlap region of
// the next chunk, and never more than a sixth of the chunk size, so forward
// progress and full coverage hold.
func (c *Chunker) softBreak(runes []rune, start, end int) int {
	floor := start + c.overlap + 1
	if limit := end - c.size/6; limit > floor {
		floor = limit
	}
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}
