package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates a malformed component configuration,
	// such as a chunk overlap that is not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a malformed request, such as a
	// non-positive search limit. Rejected synchronously with no side effects.
	ErrInvalidArgument = errors.New("invalid argument")

	// Infrastructure Errors.
	//
	// These are transient: the workflow engine retries steps that fail
	// with them before failing the run.

	// ErrEmbeddingUnavailable indicates the embedding service could not be
	// reached or returned an unusable response. Ingestion and query abort
	// rather than store garbage vectors.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorStoreUnavailable indicates the vector store could not be
	// reached or a write/search failed for infrastructure reasons.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")

	// ErrLLMUnavailable indicates the language model service is not
	// reachable. The answer synthesizer degrades to a fixed apology
	// instead of surfacing this to callers.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Workflow Errors.

	// ErrRateLimited indicates an ingest trigger for a source was rejected
	// because the same source was already ingested within the rate-limit
	// window. No run is created and no side effects occur.
	ErrRateLimited = errors.New("rate limited")

	// ErrRunFailed indicates a run reached the Failed terminal state.
	// Non-retryable without a fresh trigger.
	ErrRunFailed = errors.New("run failed")

	// ErrRunCancelled indicates a run reached the Cancelled terminal state.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrTimeout indicates a bounded wait (HTTP call, run status poll)
	// exceeded its deadline. The run itself may still complete later.
	ErrTimeout = errors.New("timeout")
)

// transienter is implemented by errors that know their own retry class.
type transienter interface {
	Transient() bool
}

// IsTransient reports whether err should be retried by the workflow
// engine's backoff policy. Unknown errors are treated as permanent so a
// misclassified bug fails fast instead of retrying forever.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrVectorStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}
