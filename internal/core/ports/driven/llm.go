package driven

import "context"

// LLMService provides text generation for answer synthesis.
//
// Implementations may include:
//   - Groq (llama-3.1-8b-instant)
//   - OpenAI (GPT-4o)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight
	// test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// TopP is the nucleus sampling cutoff.
	TopP float64
}
