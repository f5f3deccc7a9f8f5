package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Generation parameters for answer synthesis. Low temperature keeps the
// model close to the retrieved contexts.
const (
	answerMaxTokens   = 1024
	answerTemperature = 0.1
	answerTopP        = 0.9
)

// apologyAnswer is returned in place of a generated answer when the LLM
// is unavailable. The query run still succeeds; retrieval results are
// preserved and only the synthesis degrades.
const apologyAnswer = "I apologize, but I'm having trouble generating a response right now. Please try again."

// noAnswerInstruction tells the model what to say when the contexts do
// not contain the answer.
const noAnswerInstruction = "I cannot find the answer in the provided documents."

// Synthesizer turns retrieved contexts and a question into an answer.
type Synthesizer struct {
	llm driven.LLMService
}

// NewSynthesizer creates an answer synthesizer backed by the given LLM.
func NewSynthesizer(llm driven.LLMService) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize generates an answer grounded in the given contexts. LLM
// failures degrade to a fixed apology rather than failing the caller;
// the second return reports whether a real answer was generated.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, contexts []domain.VectorHit) (string, bool) {
	prompt := BuildPrompt(question, contexts)

	answer, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
		TopP:        answerTopP,
	})
	if err != nil {
		logger.Warn("answer generation failed, degrading to apology: %v", err)
		return apologyAnswer, false
	}
	return normalizeAnswer(answer), true
}

// BuildPrompt assembles the grounding prompt: the retrieved contexts in
// retrieval order, the question, and the answer-from-context
// instruction.
func BuildPrompt(question string, contexts []domain.VectorHit) string {
	blocks := make([]string, 0, len(contexts))
	for _, hit := range contexts {
		blocks = append(blocks, hit.Text)
	}

	var b strings.Builder
	b.WriteString("Use the following context to answer the question. ")
	b.WriteString(fmt.Sprintf("If the answer is not in the context, say %q.\n\n", noAnswerInstruction))
	b.WriteString("CONTEXT:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nANSWER:")
	return b.String()
}

// normalizeAnswer cleans model output for terminal display. Some models
// emit literal backslash-n sequences instead of newlines.
func normalizeAnswer(answer string) string {
	answer = strings.ReplaceAll(answer, `\n`, "\n")
	return strings.TrimSpace(answer)
}
