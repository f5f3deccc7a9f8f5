package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]domain.Run
	steps map[string]domain.StepRecord
}

// NewRunStore creates an in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:  make(map[string]domain.Run),
		steps: make(map[string]domain.StepRecord),
	}
}

// SaveRun creates or updates a run.
func (s *RunStore) SaveRun(_ context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns runs for a workflow, most recent first.
func (s *RunStore) ListRuns(_ context.Context, workflow string) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []domain.Run
	for _, run := range s.runs {
		if workflow == "" || run.Workflow == workflow {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// LastRunForKey returns the creation time of the most recent matching
// run at or after since.
func (s *RunStore) LastRunForKey(_ context.Context, workflow, rateKey string, since time.Time) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	found := false
	for _, run := range s.runs {
		if run.Workflow != workflow || run.RateKey != rateKey {
			continue
		}
		if run.CreatedAt.Before(since) {
			continue
		}
		if !found || run.CreatedAt.After(last) {
			last = run.CreatedAt
			found = true
		}
	}
	if !found {
		return time.Time{}, domain.ErrNotFound
	}
	return last, nil
}

// SaveStep creates or updates a step record.
func (s *RunStore) SaveStep(_ context.Context, step *domain.StepRecord) error {
	if step == nil || step.RunID == "" || step.StepName == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[step.RunID+"/"+step.StepName] = *step
	return nil
}

// GetStep retrieves a step record.
func (s *RunStore) GetStep(_ context.Context, runID, stepName string) (*domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[runID+"/"+stepName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &step, nil
}

// Close releases resources.
func (s *RunStore) Close() error {
	return nil
}
