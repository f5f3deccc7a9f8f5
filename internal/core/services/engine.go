// Package services contains the application core: the durable workflow
// engine and the ingest and query pipelines it runs. Everything here
// speaks only in domain types and driven ports; no adapter leaks in.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Execution defaults. Transient step failures are retried with doubling
// backoff; the rate window guards against re-ingesting the same source.
const (
	defaultMaxAttempts    = 4
	defaultRetryBaseDelay = time.Second
	defaultRateWindow     = 4 * time.Hour
)

// StepFunc executes one workflow step. payload is the run input, input
// is the previous step's output (nil for the first step). The returned
// JSON is memoized; the last step's output becomes the run output.
//
// Steps must be side-effect safe to memoize: once a step's output is
// recorded the step never runs again for that run, so all of a step's
// external writes happen before it returns success.
type StepFunc func(ctx context.Context, payload, input json.RawMessage) (json.RawMessage, error)

// Step is a named unit of durable execution.
type Step struct {
	Name string
	Run  StepFunc
}

// Workflow is an ordered step sequence registered with the engine.
type Workflow struct {
	// Name is the event name that triggers this workflow.
	Name string

	// Steps run in order; each step's output feeds the next.
	Steps []Step

	// RateKey derives the rate-limit key from the payload. Nil disables
	// per-key rate limiting for this workflow.
	RateKey func(payload json.RawMessage) (string, error)

	// Limiter throttles run admission. Nil admits immediately.
	// Throttled runs stay Queued until a slot frees up.
	Limiter *rate.Limiter
}

// Ensure Engine implements the driving port.
var _ driving.WorkflowEngine = (*Engine)(nil)

// Engine executes workflows durably: every run and step lands in the
// run store before and after execution, so a crashed run can be resumed
// with completed steps replayed from their memoized output.
type Engine struct {
	runs       driven.RunStore
	workflows  map[string]Workflow
	rateWindow time.Duration

	maxAttempts    int
	retryBaseDelay time.Duration

	mu     sync.Mutex
	active map[string]*runHandle
	wg     sync.WaitGroup

	// triggerMu serializes the rate-limit check with run creation so
	// concurrent triggers for the same key cannot both pass the check.
	triggerMu sync.Mutex

	now func() time.Time
}

// runHandle tracks an in-flight run so Cancel can reach it.
type runHandle struct {
	cancelled atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRateWindow overrides the per-source rate-limit window.
func WithRateWindow(window time.Duration) EngineOption {
	return func(e *Engine) { e.rateWindow = window }
}

// WithMaxAttempts overrides the per-step attempt budget.
func WithMaxAttempts(attempts int) EngineOption {
	return func(e *Engine) { e.maxAttempts = attempts }
}

// WithRetryBaseDelay overrides the first retry delay.
func WithRetryBaseDelay(delay time.Duration) EngineOption {
	return func(e *Engine) { e.retryBaseDelay = delay }
}

// withClock substitutes the engine clock in tests.
func withClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a workflow engine over the given run store.
func NewEngine(runs driven.RunStore, opts ...EngineOption) *Engine {
	e := &Engine{
		runs:           runs,
		workflows:      make(map[string]Workflow),
		rateWindow:     defaultRateWindow,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		active:         make(map[string]*runHandle),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a workflow. Registering the same name twice replaces
// the earlier definition.
func (e *Engine) Register(w Workflow) {
	e.workflows[w.Name] = w
}

// Trigger starts a run asynchronously and returns its id. Rate-limited
// triggers are rejected before any run is recorded.
func (e *Engine) Trigger(ctx context.Context, event driving.Event) (string, error) {
	w, ok := e.workflows[event.Name]
	if !ok {
		return "", fmt.Errorf("unknown workflow %q: %w", event.Name, domain.ErrInvalidArgument)
	}

	e.triggerMu.Lock()
	defer e.triggerMu.Unlock()

	rateKey := ""
	if w.RateKey != nil {
		key, err := w.RateKey(event.Payload)
		if err != nil {
			return "", err
		}
		rateKey = key

		since := e.now().Add(-e.rateWindow)
		last, err := e.runs.LastRunForKey(ctx, w.Name, rateKey, since)
		switch {
		case err == nil:
			return "", fmt.Errorf("%q was ingested %s ago: %w",
				rateKey, e.now().Sub(last).Round(time.Second), domain.ErrRateLimited)
		case !isNotFound(err):
			return "", fmt.Errorf("checking rate limit: %w", err)
		}
	}

	now := e.now()
	run := &domain.Run{
		ID:        uuid.New().String(),
		Workflow:  w.Name,
		RateKey:   rateKey,
		Status:    domain.RunQueued,
		Payload:   event.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}

	e.launch(run.ID, w)
	return run.ID, nil
}

// Poll returns the current state of a run.
func (e *Engine) Poll(ctx context.Context, runID string) (*driving.RunState, error) {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	state := &driving.RunState{
		RunID:    run.ID,
		Workflow: run.Workflow,
		Status:   run.Status,
		Error:    run.LastError,
	}
	if run.Status == domain.RunRunning {
		state.CurrentStep = run.CurrentStep
	}
	if run.Status.Success() {
		state.Output = run.Output
	}
	return state, nil
}

// Wait polls until the run is terminal or the deadline elapses.
func (e *Engine) Wait(ctx context.Context, runID string, interval, deadline time.Duration) (*driving.RunState, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for {
		state, err := e.Poll(ctx, runID)
		if err != nil {
			return nil, err
		}
		if state.Status.Terminal() {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, fmt.Errorf("run %s still %s after %s: %w",
				runID, state.Status, deadline, domain.ErrTimeout)
		case <-ticker.C:
		}
	}
}

// Cancel requests cancellation of a run. The in-flight step finishes;
// the run halts before the next step. Terminal runs are left alone.
func (e *Engine) Cancel(ctx context.Context, runID string) error {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return nil
	}

	e.mu.Lock()
	handle, live := e.active[runID]
	e.mu.Unlock()
	if live {
		handle.cancelled.Store(true)
		return nil
	}

	// Not in flight here (crashed or belongs to a dead process): mark
	// the row directly.
	run.Status = domain.RunCancelled
	run.LastError = "cancelled"
	run.CurrentStep = ""
	run.UpdatedAt = e.now()
	return e.runs.SaveRun(ctx, run)
}

// Resume re-drives a non-terminal or failed run. Memoized steps are
// replayed; execution continues at the first un-memoized step.
func (e *Engine) Resume(ctx context.Context, runID string) error {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Success() {
		return nil
	}

	w, ok := e.workflows[run.Workflow]
	if !ok {
		return fmt.Errorf("run %s references unknown workflow %q: %w",
			runID, run.Workflow, domain.ErrInvalidArgument)
	}

	e.mu.Lock()
	if _, live := e.active[runID]; live {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	run.Status = domain.RunQueued
	run.LastError = ""
	run.CurrentStep = ""
	run.UpdatedAt = e.now()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("requeuing run: %w", err)
	}

	e.launch(runID, w)
	return nil
}

// Runs returns runs for a workflow, most recent first.
func (e *Engine) Runs(ctx context.Context, workflow string) ([]domain.Run, error) {
	return e.runs.ListRuns(ctx, workflow)
}

// Drain blocks until all in-flight runs finish. For orderly shutdown
// and tests; new triggers during a drain still start.
func (e *Engine) Drain() {
	e.wg.Wait()
}

// launch starts the run goroutine and registers its handle.
func (e *Engine) launch(runID string, w Workflow) {
	handle := &runHandle{}
	e.mu.Lock()
	e.active[runID] = handle
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.active, runID)
			e.mu.Unlock()
		}()
		e.execute(context.Background(), runID, w, handle)
	}()
}

// execute drives a run through its steps, memoizing each completed step.
func (e *Engine) execute(ctx context.Context, runID string, w Workflow, handle *runHandle) {
	run, err := e.runs.GetRun(ctx, runID)
	if err != nil {
		logger.Warn("run %s vanished before execution: %v", runID, err)
		return
	}

	if w.Limiter != nil {
		if err := w.Limiter.Wait(ctx); err != nil {
			e.finishFailed(ctx, run, fmt.Errorf("awaiting admission: %w", err))
			return
		}
	}
	if handle.cancelled.Load() {
		e.finishCancelled(ctx, run)
		return
	}

	var input json.RawMessage
	for _, step := range w.Steps {
		if handle.cancelled.Load() {
			e.finishCancelled(ctx, run)
			return
		}

		output, err := e.runStep(ctx, run, step, input)
		if err != nil {
			e.finishFailed(ctx, run, err)
			return
		}
		input = output
	}

	run.Status = domain.RunSucceeded
	run.CurrentStep = ""
	run.Output = input
	run.LastError = ""
	run.UpdatedAt = e.now()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("recording success of run %s: %v", runID, err)
	}
	logger.Debug("run %s (%s) succeeded", run.ID, run.Workflow)
}

// runStep replays a memoized step or executes it with retries.
func (e *Engine) runStep(ctx context.Context, run *domain.Run, step Step, input json.RawMessage) (json.RawMessage, error) {
	memo, err := e.runs.GetStep(ctx, run.ID, step.Name)
	if err == nil && memo.Status == domain.StepCompleted {
		logger.Debug("run %s: replaying step %s from memo", run.ID, step.Name)
		return memo.Output, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("loading step memo %s: %w", step.Name, err)
	}

	run.Status = domain.RunRunning
	run.CurrentStep = step.Name
	run.UpdatedAt = e.now()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording step start: %w", err)
	}

	record := &domain.StepRecord{RunID: run.ID, StepName: step.Name, Status: domain.StepRunning}

	// Attempts accumulate across drives of the same run: a resumed step
	// keeps the count from the drive that failed it.
	prior := 0
	if err == nil {
		prior = memo.Attempts
	}

	var lastErr error
	delay := e.retryBaseDelay
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		record.Attempts = prior + attempt
		if err := e.runs.SaveStep(ctx, record); err != nil {
			return nil, fmt.Errorf("recording step attempt: %w", err)
		}

		output, err := step.Run(ctx, run.Payload, input)
		if err == nil {
			record.Status = domain.StepCompleted
			record.Output = output
			record.CompletedAt = e.now()
			if err := e.runs.SaveStep(ctx, record); err != nil {
				return nil, fmt.Errorf("memoizing step %s: %w", step.Name, err)
			}
			return output, nil
		}

		lastErr = err
		if !domain.IsTransient(err) {
			logger.Debug("run %s: step %s failed permanently: %v", run.ID, step.Name, err)
			break
		}
		if attempt < e.maxAttempts {
			logger.Debug("run %s: step %s attempt %d failed, retrying in %s: %v",
				run.ID, step.Name, attempt, delay, err)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = e.maxAttempts
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	record.Status = domain.StepFailed
	record.CompletedAt = e.now()
	if err := e.runs.SaveStep(ctx, record); err != nil {
		logger.Warn("recording step failure: %v", err)
	}
	return nil, fmt.Errorf("step %s: %w", step.Name, lastErr)
}

func (e *Engine) finishFailed(ctx context.Context, run *domain.Run, cause error) {
	run.Status = domain.RunFailed
	run.CurrentStep = ""
	run.LastError = cause.Error()
	run.UpdatedAt = e.now()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("recording failure of run %s: %v", run.ID, err)
	}
	logger.Debug("run %s (%s) failed: %v", run.ID, run.Workflow, cause)
}

func (e *Engine) finishCancelled(ctx context.Context, run *domain.Run) {
	run.Status = domain.RunCancelled
	run.CurrentStep = ""
	run.LastError = "cancelled"
	run.UpdatedAt = e.now()
	if err := e.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("recording cancellation of run %s: %v", run.ID, err)
	}
	logger.Debug("run %s (%s) cancelled", run.ID, run.Workflow)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
