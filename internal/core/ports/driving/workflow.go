package driving

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// Workflow event names. Each names an ordered step sequence registered
// with the engine.
const (
	// EventIngestDocument triggers the ingest pipeline:
	// load-and-chunk -> embed-and-upsert.
	EventIngestDocument = "ingest_document"

	// EventQueryDocument triggers the query pipeline:
	// embed-and-search -> llm-answer.
	EventQueryDocument = "query_document"
)

// Event is a named workflow trigger with a JSON payload.
type Event struct {
	// Name selects the workflow.
	Name string

	// Payload is the workflow input, serialized as JSON.
	Payload json.RawMessage
}

// IngestPayload is the ingest_document event payload.
type IngestPayload struct {
	// PDFPath is the document to ingest.
	PDFPath string `json:"pdf_path"`

	// SourceID identifies the document for record ids and rate limiting.
	// Defaults to the path's file name when empty.
	SourceID string `json:"source_id,omitempty"`
}

// IngestResult is the ingest_document run output.
type IngestResult struct {
	// Ingested is the number of vector records written.
	Ingested int `json:"ingested"`
}

// QueryPayload is the query_document event payload.
type QueryPayload struct {
	// Question is the natural-language question.
	Question string `json:"question"`

	// TopK is the number of contexts to retrieve. Defaults to 5.
	TopK int `json:"top_k,omitempty"`
}

// QueryResult is the query_document run output.
type QueryResult struct {
	// Answer is the synthesized answer text.
	Answer string `json:"answer"`

	// Sources lists the source id of each retrieved context,
	// index-aligned with the contexts used.
	Sources []string `json:"sources"`

	// NumContexts is the number of contexts the answer drew from.
	NumContexts int `json:"num_contexts"`
}

// NewIngestEvent builds an ingest_document event.
func NewIngestEvent(pdfPath, sourceID string) (Event, error) {
	payload, err := json.Marshal(IngestPayload{PDFPath: pdfPath, SourceID: sourceID})
	if err != nil {
		return Event{}, fmt.Errorf("marshal ingest payload: %w", err)
	}
	return Event{Name: EventIngestDocument, Payload: payload}, nil
}

// NewQueryEvent builds a query_document event.
func NewQueryEvent(question string, topK int) (Event, error) {
	payload, err := json.Marshal(QueryPayload{Question: question, TopK: topK})
	if err != nil {
		return Event{}, fmt.Errorf("marshal query payload: %w", err)
	}
	return Event{Name: EventQueryDocument, Payload: payload}, nil
}

// RunState is a point-in-time view of a run, as returned by Poll.
type RunState struct {
	// RunID identifies the run.
	RunID string

	// Workflow is the workflow name.
	Workflow string

	// Status is the run state at poll time.
	Status domain.RunStatus

	// CurrentStep is the step in flight, empty when queued or terminal.
	CurrentStep string

	// Output is the run result, set only on terminal success.
	Output json.RawMessage

	// Error is the failure message for Failed and Cancelled runs.
	Error string
}

// WorkflowEngine is the durable executor the callers drive. Triggers are
// asynchronous: callers poll until a terminal status, with a bounded
// overall deadline of their choosing.
type WorkflowEngine interface {
	// Trigger starts a run of the named workflow and returns its run id.
	// Ingest runs for a source already ingested within the rate-limit
	// window are rejected with domain.ErrRateLimited before any run is
	// recorded.
	Trigger(ctx context.Context, event Event) (string, error)

	// Poll returns the current state of a run.
	Poll(ctx context.Context, runID string) (*RunState, error)

	// Wait polls at a fixed interval until the run reaches a terminal
	// status or the deadline elapses, in which case it returns
	// domain.ErrTimeout. The run may still complete later.
	Wait(ctx context.Context, runID string, interval, deadline time.Duration) (*RunState, error)

	// Cancel requests cancellation. An in-flight step runs to completion
	// or failure first; the run halts before the next step starts.
	// Cancelling a terminal run is a no-op.
	Cancel(ctx context.Context, runID string) error

	// Resume re-drives a non-terminal or failed run. Completed steps are
	// replayed from the memo; execution continues at the first
	// un-memoized step, so no side-effecting step runs twice.
	Resume(ctx context.Context, runID string) error

	// Runs returns runs for a workflow, most recent first. An empty
	// workflow name returns all runs.
	Runs(ctx context.Context, workflow string) ([]domain.Run, error)
}
