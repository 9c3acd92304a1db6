package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine-similarity store. It backs tests and
// keyless local runs; the dimension is fixed at construction, matching the
// durable store's create-time contract.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []Record
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension}
}

func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: store is %d, record %s is %d", s.dimension, rec.ID, len(rec.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := make(map[string]struct{})
	for _, rec := range records {
		replaced[rec.Metadata.Source] = struct{}{}
	}

	kept := s.records[:0]
	for _, rec := range s.records {
		if _, ok := replaced[rec.Metadata.Source]; !ok {
			kept = append(kept, rec)
		}
	}
	s.records = append(kept, records...)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("vector dimension mismatch: store is %d, query is %d", s.dimension, len(vector))
	}
	if topK <= 0 {
		topK = 4
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.records))
	for _, rec := range s.records {
		matches = append(matches, Match{
			ID:       rec.ID.String(),
			Score:    cosine(rec.Vector, vector),
			Metadata: rec.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Store = (*MemoryStore)(nil)
