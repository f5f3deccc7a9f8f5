package domain

import (
	"encoding/json"
	"time"
)

// RunStatus is the state of a workflow run.
type RunStatus string

// Run states. A run moves Queued -> Running -> terminal; Running advances
// to the next step only after the current step's output is durably
// memoized.
const (
	RunQueued    RunStatus = "Queued"
	RunRunning   RunStatus = "Running"
	RunSucceeded RunStatus = "Succeeded"
	RunFailed    RunStatus = "Failed"
	RunCancelled RunStatus = "Cancelled"
)

// Terminal reports whether the status is terminal (no further transitions).
func (s RunStatus) Terminal() bool {
	return s.Success() || s.Failure()
}

// Success reports whether the status is a terminal success. External run
// feeds use a small set of synonyms for completion, so all of them are
// recognised.
func (s RunStatus) Success() bool {
	switch s {
	case RunSucceeded, "Completed", "Success", "Finished":
		return true
	}
	return false
}

// Failure reports whether the status is a terminal failure.
func (s RunStatus) Failure() bool {
	return s == RunFailed || s == RunCancelled
}

// Run represents one execution instance of a workflow.
type Run struct {
	// ID uniquely identifies the run.
	ID string

	// Workflow is the workflow name ("ingest_document", "query_document").
	Workflow string

	// RateKey scopes per-key rate limiting. For ingest runs this is the
	// source id; empty when the workflow is not rate limited.
	RateKey string

	// Status is the current run state.
	Status RunStatus

	// CurrentStep is the name of the step in flight, empty when queued
	// or terminal.
	CurrentStep string

	// Payload is the triggering event payload, serialized as JSON.
	Payload json.RawMessage

	// Output is the workflow result, set only on terminal success.
	Output json.RawMessage

	// LastError holds the failure message for Failed and Cancelled runs.
	LastError string

	// CreatedAt is when the run was triggered.
	CreatedAt time.Time

	// UpdatedAt is when the run last changed state.
	UpdatedAt time.Time
}

// StepStatus is the state of a single memoized step.
type StepStatus string

// Step states. A step record exists from first attempt; Completed records
// are replayed from the memo and never re-executed.
const (
	StepRunning   StepStatus = "Running"
	StepCompleted StepStatus = "Completed"
	StepFailed    StepStatus = "Failed"
)

// StepRecord is a memoized workflow step output. For a given run a step
// name executes at most once to completion; re-driving the run returns
// the recorded output without re-executing side effects.
type StepRecord struct {
	// RunID identifies the owning run.
	RunID string

	// StepName identifies the step within the workflow.
	StepName string

	// Status is the step state.
	Status StepStatus

	// Output is the step result serialized as JSON, set when Completed.
	Output json.RawMessage

	// Attempts counts executions including retries.
	Attempts int

	// CompletedAt is when the step finished, zero while running.
	CompletedAt time.Time
}
