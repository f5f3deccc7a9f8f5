package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// runTimeLayout is a fixed-width UTC timestamp format. created_at and
// updated_at are compared lexicographically in SQL, and RFC3339Nano
// trims trailing fractional zeros, which breaks string ordering for
// times within the same second. Fixed-width keeps string order equal to
// time order.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// SaveRun creates or updates a run.
func (s *runStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidArgument
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow, rate_key, status, current_step, payload, output, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_step = excluded.current_step,
			output = excluded.output,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, run.ID, run.Workflow, run.RateKey, string(run.Status), run.CurrentStep,
		rawJSONString(run.Payload), rawJSONString(run.Output), nullString(run.LastError),
		run.CreatedAt.UTC().Format(runTimeLayout), run.UpdatedAt.UTC().Format(runTimeLayout))

	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *runStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, workflow, rate_key, status, current_step, payload, output, last_error, created_at, updated_at
		FROM runs WHERE id = ?
	`, runID)

	run, err := scanRun(row.Scan)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs for a workflow, most recent first.
func (s *runStore) ListRuns(ctx context.Context, workflow string) ([]domain.Run, error) {
	query := `
		SELECT id, workflow, rate_key, status, current_step, payload, output, last_error, created_at, updated_at
		FROM runs`
	args := []any{}
	if workflow != "" {
		query += " WHERE workflow = ?"
		args = append(args, workflow)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// LastRunForKey returns the creation time of the most recent matching
// run at or after since.
func (s *runStore) LastRunForKey(ctx context.Context, workflow, rateKey string, since time.Time) (time.Time, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT created_at FROM runs
		WHERE workflow = ? AND rate_key = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`, workflow, rateKey, since.UTC().Format(runTimeLayout))

	var createdAt string
	if err := row.Scan(&createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("querying last run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing run timestamp: %w", err)
	}
	return t, nil
}

// SaveStep creates or updates a step record. The engine memoizes a
// step's output through this before advancing, so the write must be
// durable before returning.
func (s *runStore) SaveStep(ctx context.Context, step *domain.StepRecord) error {
	if step == nil || step.RunID == "" || step.StepName == "" {
		return domain.ErrInvalidArgument
	}

	var completedAt any
	if !step.CompletedAt.IsZero() {
		completedAt = step.CompletedAt.UTC().Format(runTimeLayout)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, step_name, status, output, attempts, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step_name) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			attempts = excluded.attempts,
			completed_at = excluded.completed_at
	`, step.RunID, step.StepName, string(step.Status), rawJSONString(step.Output),
		step.Attempts, completedAt)

	if err != nil {
		return fmt.Errorf("saving step: %w", err)
	}
	return nil
}

// GetStep retrieves a step record.
func (s *runStore) GetStep(ctx context.Context, runID, stepName string) (*domain.StepRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT run_id, step_name, status, output, attempts, completed_at
		FROM run_steps WHERE run_id = ? AND step_name = ?
	`, runID, stepName)

	var (
		step        domain.StepRecord
		status      string
		output      sql.NullString
		completedAt sql.NullString
	)
	if err := row.Scan(&step.RunID, &step.StepName, &status, &output, &step.Attempts, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying step: %w", err)
	}

	step.Status = domain.StepStatus(status)
	if output.Valid && output.String != "" {
		step.Output = json.RawMessage(output.String)
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing step timestamp: %w", err)
		}
		step.CompletedAt = t
	}
	return &step, nil
}

// Close is a no-op; the owning Store manages the connection.
func (s *runStore) Close() error {
	return nil
}

// scanRun reads one run row via the given scan function.
func scanRun(scan func(dest ...any) error) (*domain.Run, error) {
	var (
		run                  domain.Run
		status               string
		payload, output      sql.NullString
		lastError            sql.NullString
		createdAt, updatedAt string
	)
	err := scan(&run.ID, &run.Workflow, &run.RateKey, &status, &run.CurrentStep,
		&payload, &output, &lastError, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	if payload.Valid && payload.String != "" {
		run.Payload = json.RawMessage(payload.String)
	}
	if output.Valid && output.String != "" {
		run.Output = json.RawMessage(output.String)
	}
	if lastError.Valid {
		run.LastError = lastError.String
	}

	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing run created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing run updated_at: %w", err)
	}
	return &run, nil
}

// rawJSONString converts a raw JSON value to a nullable column value.
func rawJSONString(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// nullString converts an empty string to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
