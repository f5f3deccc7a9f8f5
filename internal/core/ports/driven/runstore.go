package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// RunStore is the durable ledger behind the workflow engine. It persists
// run state and memoized step outputs so a re-driven run replays
// completed steps instead of re-executing their side effects.
type RunStore interface {
	// SaveRun creates or updates a run keyed by its ID.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// ListRuns returns runs for a workflow ordered by creation time,
	// most recent first. An empty workflow name returns all runs.
	ListRuns(ctx context.Context, workflow string) ([]domain.Run, error)

	// LastRunForKey returns the creation time of the most recent run of
	// the workflow with the given rate key at or after since. Returns
	// domain.ErrNotFound when no such run exists. Used for per-source
	// rate limiting.
	LastRunForKey(ctx context.Context, workflow, rateKey string, since time.Time) (time.Time, error)

	// SaveStep creates or updates a step record keyed by (run ID, step
	// name). A step's output must be durably recorded before the run
	// advances to the next step.
	SaveStep(ctx context.Context, step *domain.StepRecord) error

	// GetStep retrieves a step record.
	// Returns domain.ErrNotFound if no record exists.
	GetStep(ctx context.Context, runID, stepName string) (*domain.StepRecord, error)

	// Close releases resources.
	Close() error
}
