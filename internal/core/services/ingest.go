package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa-cli/internal/chunker"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Ingest step names. Step one has no external writes and is cheap to
// redo; step two holds every side effect so a resumed run never embeds
// or upserts twice.
const (
	StepLoadAndChunk   = "load-and-chunk"
	StepEmbedAndUpsert = "embed-and-upsert"
)

// defaultIngestLimiter admits two ingest runs per minute.
func defaultIngestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(30*time.Second), 2)
}

// chunkStepOutput is the memoized output of load-and-chunk.
type chunkStepOutput struct {
	SourceID string   `json:"source_id"`
	Chunks   []string `json:"chunks"`
}

// Ingester builds the ingest_document workflow.
type Ingester struct {
	extractor driven.TextExtractor
	splitter  *chunker.Splitter
	embedder  driven.EmbeddingService
	vectors   driven.VectorStore
	limiter   *rate.Limiter
}

// IngesterOption configures an Ingester.
type IngesterOption func(*Ingester)

// WithIngestLimiter overrides the admission throttle.
func WithIngestLimiter(l *rate.Limiter) IngesterOption {
	return func(i *Ingester) { i.limiter = l }
}

// NewIngester wires the ingest pipeline dependencies.
func NewIngester(extractor driven.TextExtractor, splitter *chunker.Splitter, embedder driven.EmbeddingService, vectors driven.VectorStore, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		vectors:   vectors,
		limiter:   defaultIngestLimiter(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Workflow returns the ingest_document workflow definition.
func (i *Ingester) Workflow() Workflow {
	return Workflow{
		Name: driving.EventIngestDocument,
		Steps: []Step{
			{Name: StepLoadAndChunk, Run: i.loadAndChunk},
			{Name: StepEmbedAndUpsert, Run: i.embedAndUpsert},
		},
		RateKey: ingestRateKey,
		Limiter: i.limiter,
	}
}

// ingestRateKey derives the rate-limit key from the payload: the
// explicit source id, or the document's file name.
func ingestRateKey(payload json.RawMessage) (string, error) {
	var p driving.IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("decoding ingest payload: %w", err)
	}
	if p.PDFPath == "" {
		return "", fmt.Errorf("pdf_path is required: %w", domain.ErrInvalidArgument)
	}
	if p.SourceID != "" {
		return p.SourceID, nil
	}
	return filepath.Base(p.PDFPath), nil
}

// loadAndChunk extracts the document's text and splits it into
// overlapping chunks.
func (i *Ingester) loadAndChunk(ctx context.Context, payload, _ json.RawMessage) (json.RawMessage, error) {
	var p driving.IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding ingest payload: %w", err)
	}
	sourceID := p.SourceID
	if sourceID == "" {
		sourceID = filepath.Base(p.PDFPath)
	}

	text, err := i.extractor.Extract(ctx, p.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", p.PDFPath, err)
	}

	chunks := i.splitter.Split(text)
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	logger.Debug("chunked %s into %d pieces", sourceID, len(texts))

	return json.Marshal(chunkStepOutput{SourceID: sourceID, Chunks: texts})
}

// embedAndUpsert embeds the chunks and writes them to the vector store
// under deterministic ids, so re-ingesting a source overwrites in place.
func (i *Ingester) embedAndUpsert(ctx context.Context, _, input json.RawMessage) (json.RawMessage, error) {
	var chunked chunkStepOutput
	if err := json.Unmarshal(input, &chunked); err != nil {
		return nil, fmt.Errorf("decoding chunk output: %w", err)
	}
	if len(chunked.Chunks) == 0 {
		return json.Marshal(driving.IngestResult{Ingested: 0})
	}

	vectors, err := i.embedder.EmbedBatch(ctx, chunked.Chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunked.Chunks), err)
	}

	records := make([]domain.VectorRecord, 0, len(chunked.Chunks))
	for idx, text := range chunked.Chunks {
		records = append(records, domain.VectorRecord{
			ID:     RecordID(chunked.SourceID, idx),
			Vector: vectors[idx],
			Source: chunked.SourceID,
			Text:   text,
		})
	}

	written, err := i.vectors.Upsert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("upserting %d records: %w", len(records), err)
	}
	logger.Debug("upserted %d records for %s", written, chunked.SourceID)

	return json.Marshal(driving.IngestResult{Ingested: written})
}

// RecordID derives the stable vector record id for a chunk: a name-based
// UUID over "{source}:{position}". The same source and position always
// map to the same id.
func RecordID(sourceID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s:%d", sourceID, position))).String()
}
