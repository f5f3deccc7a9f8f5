// Package mock provides a deterministic offline embedding service. The
// vectors carry no semantic meaning; they exist so pipelines can run
// without a model server (tests, demos, smoke checks).
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// DefaultDimensions matches the all-minilm default so the mock can stand
// in for the Ollama embedder without reconfiguring the vector store.
const DefaultDimensions = 384

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// EmbeddingService derives unit vectors from a hash of the input text.
// The same text always embeds to the same vector.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a mock embedder. dimensions <= 0 uses
// DefaultDimensions.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed generates a deterministic vector for the text.
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	return s.vectorFor(text), nil
}

// EmbedBatch generates one vector per input, index-aligned.
func (s *EmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = s.vectorFor(text)
	}
	return vectors, nil
}

// vectorFor seeds a small hash chain with the text and normalizes the
// result to unit length.
func (s *EmbeddingService) vectorFor(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	vector := make([]float32, s.dimensions)
	var norm float64
	for i := range vector {
		// xorshift keeps successive components decorrelated.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float32(int64(state%2001)-1000) / 1000
		vector[i] = v
		norm += float64(v) * float64(v)
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the mock model.
func (s *EmbeddingService) ModelName() string {
	return "mock"
}

// Ping always succeeds; there is nothing to reach.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
