package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Query step names.
const (
	StepEmbedAndSearch = "embed-and-search"
	StepLLMAnswer      = "llm-answer"
)

// DefaultTopK is the number of contexts retrieved when the query does
// not say.
const DefaultTopK = 5

// searchStepOutput is the memoized output of embed-and-search.
type searchStepOutput struct {
	Question string       `json:"question"`
	Contexts []contextHit `json:"contexts"`
}

type contextHit struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Querier builds the query_document workflow.
type Querier struct {
	embedder    driven.EmbeddingService
	vectors     driven.VectorStore
	synthesizer *Synthesizer
}

// NewQuerier wires the query pipeline dependencies.
func NewQuerier(embedder driven.EmbeddingService, vectors driven.VectorStore, synthesizer *Synthesizer) *Querier {
	return &Querier{
		embedder:    embedder,
		vectors:     vectors,
		synthesizer: synthesizer,
	}
}

// Workflow returns the query_document workflow definition. Queries are
// neither throttled nor rate limited.
func (q *Querier) Workflow() Workflow {
	return Workflow{
		Name: driving.EventQueryDocument,
		Steps: []Step{
			{Name: StepEmbedAndSearch, Run: q.embedAndSearch},
			{Name: StepLLMAnswer, Run: q.llmAnswer},
		},
	}
}

// embedAndSearch embeds the question and retrieves the nearest contexts.
func (q *Querier) embedAndSearch(ctx context.Context, payload, _ json.RawMessage) (json.RawMessage, error) {
	var p driving.QueryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding query payload: %w", err)
	}
	if p.Question == "" {
		return nil, fmt.Errorf("question is required: %w", domain.ErrInvalidArgument)
	}
	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := q.embedder.Embed(ctx, p.Question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := q.vectors.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("searching contexts: %w", err)
	}
	logger.Debug("retrieved %d contexts for question", len(hits))

	out := searchStepOutput{Question: p.Question, Contexts: make([]contextHit, 0, len(hits))}
	for _, hit := range hits {
		out.Contexts = append(out.Contexts, contextHit{
			ID:         hit.ID,
			Source:     hit.Source,
			Text:       hit.Text,
			Similarity: hit.Similarity,
		})
	}
	return json.Marshal(out)
}

// llmAnswer synthesizes an answer from the retrieved contexts. LLM
// failure degrades to an apology inside the synthesizer, so this step
// only fails on malformed memo data.
func (q *Querier) llmAnswer(ctx context.Context, _, input json.RawMessage) (json.RawMessage, error) {
	var search searchStepOutput
	if err := json.Unmarshal(input, &search); err != nil {
		return nil, fmt.Errorf("decoding search output: %w", err)
	}

	contexts := make([]domain.VectorHit, 0, len(search.Contexts))
	sources := make([]string, 0, len(search.Contexts))
	for _, c := range search.Contexts {
		contexts = append(contexts, domain.VectorHit{
			ID:         c.ID,
			Source:     c.Source,
			Text:       c.Text,
			Similarity: c.Similarity,
		})
		sources = append(sources, c.Source)
	}

	answer, _ := q.synthesizer.Synthesize(ctx, search.Question, contexts)

	return json.Marshal(driving.QueryResult{
		Answer:      answer,
		Sources:     sources,
		NumContexts: len(contexts),
	})
}
