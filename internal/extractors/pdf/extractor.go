// Package pdf extracts plain text from PDF documents by shelling out to
// pdftotext (poppler-utils). Non-PDF files are read verbatim so plain
// text corpora work without the tool installed.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// InstallInstructions explains how to install the required tool.
const InstallInstructions = `pdftotext is required for PDF extraction.

Install it with your package manager:
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils
  macOS:         brew install poppler`

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor extracts document text for chunking.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates an extractor that invokes pdftotext directly.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates an extractor with an injected command runner.
// Used by tests to substitute a double for pdftotext.
func NewWithRunner(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract returns the document's text content. PDF files go through
// pdftotext; anything else is read as plain text.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read document: %w", err)
		}
		return string(content), nil
	}

	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("%w\n\n%s", ErrPDFToolNotFound, InstallInstructions)
	}

	// "-" writes the extracted text to stdout.
	out, err := e.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext %s: %w", path, err)
	}

	return string(out), nil
}
