package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/vecmath"
)

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store      *Store
	dimensions int
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Upsert inserts or replaces records by id inside a single transaction,
// so a batch is all-or-nothing. ON CONFLICT DO UPDATE keeps the original
// rowid, which preserves search tie-breaking by first insertion.
func (s *vectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("%w: record with empty id", domain.ErrInvalidArgument)
		}
		if len(r.Vector) != s.dimensions {
			return 0, fmt.Errorf("%w: record %s has dimension %d, store expects %d",
				domain.ErrInvalidArgument, r.ID, len(r.Vector), s.dimensions)
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %w", domain.ErrVectorStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, source, content, embedding, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			content = excluded.content,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare upsert: %w", domain.ErrVectorStoreUnavailable, err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		blob := encodeVector(r.Vector)
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source, r.Text, blob, len(r.Vector), now, now); err != nil {
			return 0, fmt.Errorf("%w: upsert record %s: %w", domain.ErrVectorStoreUnavailable, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit upsert: %w", domain.ErrVectorStoreUnavailable, err)
	}

	return len(records), nil
}

// Search scans all records and ranks them by cosine similarity.
// Brute-force is adequate for single-document corpora; an ANN index can
// replace the scan behind the same interface if stores grow.
func (s *vectorStore) Search(ctx context.Context, query []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has dimension %d, store expects %d",
			domain.ErrInvalidArgument, len(query), s.dimensions)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source, content, embedding, rowid
		FROM vectors
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %w", domain.ErrVectorStoreUnavailable, err)
	}
	defer rows.Close()

	type scored struct {
		hit   domain.VectorHit
		rowid int64
	}

	var results []scored
	for rows.Next() {
		var (
			id, source, content string
			blob                []byte
			rowid               int64
		)
		if err := rows.Scan(&id, &source, &content, &blob, &rowid); err != nil {
			return nil, fmt.Errorf("%w: scanning vector row: %w", domain.ErrVectorStoreUnavailable, err)
		}

		vector, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}

		results = append(results, scored{
			hit: domain.VectorHit{
				ID:         id,
				Source:     source,
				Text:       content,
				Similarity: vecmath.Cosine(query, vector),
			},
			rowid: rowid,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating vectors: %w", domain.ErrVectorStoreUnavailable, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].hit.Similarity != results[j].hit.Similarity {
			return results[i].hit.Similarity > results[j].hit.Similarity
		}
		return results[i].rowid < results[j].rowid
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
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors")
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting vectors: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return count, nil
}

// Dimensions returns the store-wide vector dimension.
func (s *vectorStore) Dimensions() int {
	return s.dimensions
}

// Close is a no-op; the owning Store manages the connection.
func (s *vectorStore) Close() error {
	return nil
}

// encodeVector encodes a vector as a little-endian sequence of IEEE 754
// float32 values. The length is derived from the blob size on decode.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// decodeVector decodes a blob produced by encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not a multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
