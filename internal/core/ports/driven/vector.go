package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// VectorStore persists (id, vector, payload) records and answers
// nearest-neighbour queries. It is a shared mutable resource across runs
// and must support concurrent Upsert/Search; last-writer-wins per id is
// acceptable, no cross-id transactional guarantee is required.
type VectorStore interface {
	// Upsert inserts or replaces records by id and returns the number
	// written. A batch is all-or-nothing: on failure no record from the
	// batch is visible and the error names the offending id. Writing the
	// same id twice replaces the prior vector and payload.
	Upsert(ctx context.Context, records []domain.VectorRecord) (int, error)

	// Search returns up to k nearest records by cosine similarity,
	// ordered from most to least similar, ties broken by insertion order.
	// k <= 0 fails with domain.ErrInvalidArgument. An empty store returns
	// an empty slice, not an error.
	Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error)

	// Count returns the number of records in the store.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the store-wide vector dimension.
	Dimensions() int

	// Close releases resources.
	Close() error
}
