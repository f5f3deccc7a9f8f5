package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorStore which stores and searches
// vectors. EmbeddingService generates vectors; VectorStore stores them.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Local models via inference servers
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// The result is parallel to the input: index i of the output is the
	// embedding of index i of the input, for all orderings including
	// duplicate inputs. A missing or malformed vector is an error; the
	// caller must abort rather than store garbage.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536).
	// This is fixed at construction and must match the VectorStore
	// dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
