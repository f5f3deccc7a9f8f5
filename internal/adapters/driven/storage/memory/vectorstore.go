// Package memory provides in-memory implementations of the storage
// ports. They back tests and serve as reference implementations for the
// durable adapters.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/vecmath"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore using
// brute-force cosine search.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	records    map[string]storedRecord
	nextSeq    int64
}

// storedRecord keeps the record plus its insertion sequence. The
// sequence is assigned on first insert and survives overwrites so search
// ties stay stable under re-ingestion.
type storedRecord struct {
	record domain.VectorRecord
	seq    int64
}

// NewVectorStore creates an in-memory vector store with a fixed
// dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		dimensions: dimensions,
		records:    make(map[string]storedRecord),
	}
}

// Upsert inserts or replaces records by id. The batch is all-or-nothing:
// every record is validated before any is written.
func (s *VectorStore) Upsert(_ context.Context, records []domain.VectorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("%w: record with empty id", domain.ErrInvalidArgument)
		}
		if len(r.Vector) != s.dimensions {
			return 0, fmt.Errorf("%w: record %s has dimension %d, store expects %d",
				domain.ErrInvalidArgument, r.ID, len(r.Vector), s.dimensions)
		}
	}

	for _, r := range records {
		prev, exists := s.records[r.ID]
		seq := s.nextSeq
		if exists {
			seq = prev.seq
		} else {
			s.nextSeq++
		}
		s.records[r.ID] = storedRecord{record: r, seq: seq}
	}

	return len(records), nil
}

// Search returns up to k nearest records by cosine similarity.
func (s *VectorStore) Search(_ context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, store expects %d",
			domain.ErrInvalidArgument, len(query), s.dimensions)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		hit domain.VectorHit
		seq int64
	}

	results := make([]scored, 0, len(s.records))
	for _, sr := range s.records {
		results = append(results, scored{
			hit: domain.VectorHit{
				ID:         sr.record.ID,
				Source:     sr.record.Source,
				Text:       sr.record.Text,
				Similarity: vecmath.Cosine(query, sr.record.Vector),
			},
			seq: sr.seq,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].hit.Similarity != results[j].hit.Similarity {
			return results[i].hit.Similarity > results[j].hit.Similarity
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > k {
		results = results[:k]
	}

	hits := make([]domain.VectorHit, len(results))
	for i, r := range results {
		hits[i] = r.hit
	}
	return hits, nil
}

// Count returns the number of records in the store.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Dimensions returns the store-wide vector dimension.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}
