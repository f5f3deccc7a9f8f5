package driven

import "context"

// TextExtractor extracts plain text from an uploaded document so it can
// be chunked and embedded.
type TextExtractor interface {
	// Extract returns the document's text content. The result is fed to
	// the chunker unchanged, so extraction must be deterministic.
	Extract(ctx context.Context, path string) (string, error)
}

// CommandRunner executes an external command and returns its combined
// output. Extractors that shell out (pdftotext) take a runner so tests
// can substitute a double.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
