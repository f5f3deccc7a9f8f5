package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		s, err := New()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, s.ChunkSize())
		}
		if s.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, s.Overlap())
		}
	})

	t.Run("custom values", func(t *testing.T) {
		s, err := New(WithChunkSize(500), WithOverlap(100))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ChunkSize() != 500 {
			t.Errorf("expected chunkSize 500, got %d", s.ChunkSize())
		}
		if s.Overlap() != 100 {
			t.Errorf("expected overlap 100, got %d", s.Overlap())
		}
	})

	t.Run("overlap equal to chunk size", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(100))
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(150))
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("zero and negative values ignored", func(t *testing.T) {
		s, err := New(WithChunkSize(0), WithOverlap(-1))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ChunkSize() != DefaultChunkSize || s.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected defaults, got size=%d overlap=%d", s.ChunkSize(), s.Overlap())
		}
	})
}

func TestSplit_Empty(t *testing.T) {
	s, _ := New()
	if chunks := s.Split(""); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty input, got %d", len(chunks))
	}
}

func TestSplit_SmallInput(t *testing.T) {
	s, _ := New(WithChunkSize(100), WithOverlap(20))
	text := "This is a small piece of content."

	chunks := s.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected chunk to equal input")
	}
	if chunks[0].Position != 0 {
		t.Errorf("expected position 0, got %d", chunks[0].Position)
	}
}

func TestSplit_OverlapAndBounds(t *testing.T) {
	const size, overlap = 50, 10
	s, _ := New(WithChunkSize(size), WithOverlap(overlap))
	text := strings.Repeat("abcdefghij", 23) // 230 bytes

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.Text == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(c.Text) > size {
			t.Errorf("chunk %d length %d exceeds chunk size %d", i, len(c.Text), size)
		}
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
	}

	// Consecutive full chunks share exactly the configured overlap.
	for i := 0; i < len(chunks)-1; i++ {
		if len(chunks[i].Text) < size {
			continue // truncated tail
		}
		tail := chunks[i].Text[len(chunks[i].Text)-overlap:]
		head := chunks[i+1].Text[:overlap]
		if tail != head {
			t.Errorf("chunks %d/%d do not overlap by %d bytes", i, i+1, overlap)
		}
	}
}

func TestSplit_Reconstruction(t *testing.T) {
	const size, overlap = 40, 15
	s, _ := New(WithChunkSize(size), WithOverlap(overlap))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 7)

	chunks := s.Split(text)

	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c.Text)
			continue
		}
		sb.WriteString(c.Text[overlap:])
	}
	if sb.String() != text {
		t.Error("dropping each chunk's leading overlap does not reconstruct the input")
	}
}

func TestSplit_MultibyteBoundaries(t *testing.T) {
	s, _ := New(WithChunkSize(9), WithOverlap(2))
	text := strings.Repeat("é", 20) // 2 bytes per rune

	chunks := s.Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c.Text)
		}
		if c.Text == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		if len(c.Text) > 9 {
			t.Errorf("chunk %d length %d exceeds chunk size", i, len(c.Text))
		}
	}

	// A 9-byte budget holds four 2-byte runes; the boundary backs off to
	// the rune start, so full chunks are 8 bytes wide.
	for i, c := range chunks[:len(chunks)-1] {
		if c.Text != strings.Repeat("é", 4) {
			t.Errorf("chunk %d = %q, want %q", i, c.Text, strings.Repeat("é", 4))
		}
	}
}

func TestSplit_RuneWiderThanChunkSize(t *testing.T) {
	s, _ := New(WithChunkSize(2), WithOverlap(0))
	text := strings.Repeat("好", 3) // 3 bytes per rune

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Text != "好" {
			t.Errorf("chunk %d = %q, want %q", i, c.Text, "好")
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	s, _ := New(WithChunkSize(30), WithOverlap(5))
	text := strings.Repeat("0123456789", 11)

	a := s.Split(text)
	b := s.Split(text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between identical runs", i)
		}
	}
}

func TestSplitAll_PositionsSpanSections(t *testing.T) {
	s, _ := New(WithChunkSize(20), WithOverlap(4))
	chunks := s.SplitAll([]string{
		strings.Repeat("a", 30),
		"",
		strings.Repeat("b", 25),
	})

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
	}
}
