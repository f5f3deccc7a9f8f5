// Package chunker provides a fixed-size overlapping text splitter.
package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping bytes between
// consecutive chunks.
const DefaultChunkOverlap = 200

// Splitter splits document text into fixed-size chunks with overlap so
// context that straddles a boundary survives in at least one chunk.
// Splitting is deterministic: the same input and configuration always
// produce the same chunk sequence.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a splitter with the given options. The overlap must be
// smaller than the chunk size; otherwise New fails with
// domain.ErrInvalidConfig.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidConfig, s.overlap, s.chunkSize)
	}

	return s, nil
}

// ChunkSize returns the configured chunk size.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split splits text into ordered chunks. Every chunk is non-empty,
// valid UTF-8, and at most the chunk size; chunk boundaries snap back
// to the nearest rune start so a multibyte rune is never cut in half.
// Consecutive chunks share the configured overlap, adjusted to the
// nearest rune boundary. Empty input produces no chunks.
func (s *Splitter) Split(text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	stride := s.chunkSize - s.overlap
	chunks := make([]domain.Chunk, 0, len(text)/stride+1)

	start := 0
	for start < len(text) {
		end := start + s.chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeStart(text, end)
		}
		if end <= start {
			// A single rune wider than the chunk size still has to
			// make progress; emit it whole.
			_, n := utf8.DecodeRuneInString(text[start:])
			end = start + n
		}

		chunks = append(chunks, domain.Chunk{
			Text:     text[start:end],
			Position: len(chunks),
		})

		if end == len(text) {
			break
		}

		next := end - s.overlap
		if next > start {
			next = runeStart(text, next)
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// runeStart backs i off to the start of the rune containing text[i].
func runeStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// SplitAll splits several extracted sections in order, numbering chunk
// positions across sections so record ids stay unique per document.
func (s *Splitter) SplitAll(sections []string) []domain.Chunk {
	var chunks []domain.Chunk
	for _, section := range sections {
		for _, c := range s.Split(section) {
			c.Position = len(chunks)
			chunks = append(chunks, c)
		}
	}
	return chunks
}
