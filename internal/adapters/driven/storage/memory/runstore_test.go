package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

func TestRunStore_SaveAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.Run{
		ID:        "run-1",
		Workflow:  "ingest_document",
		RateKey:   "doc1",
		Status:    domain.RunQueued,
		Payload:   json.RawMessage(`{"pdf_path":"a.pdf"}`),
		CreatedAt: time.Now(),
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunQueued {
		t.Errorf("status = %q, want %q", got.Status, domain.RunQueued)
	}

	// Mutating the caller's copy must not leak into the store.
	run.Status = domain.RunFailed
	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunQueued {
		t.Errorf("stored run mutated through caller copy: %q", got.Status)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun(missing) = %v, want ErrNotFound", err)
	}
	if err := store.SaveRun(ctx, &domain.Run{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("SaveRun(empty id) = %v, want ErrInvalidArgument", err)
	}
}

func TestRunStore_ListRuns(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	base := time.Now()
	seed := []struct {
		id       string
		workflow string
		offset   time.Duration
	}{
		{"old", "ingest_document", 0},
		{"new", "ingest_document", 2 * time.Second},
		{"other", "query_document", time.Second},
	}
	for _, s := range seed {
		if err := store.SaveRun(ctx, &domain.Run{
			ID:        s.id,
			Workflow:  s.workflow,
			Status:    domain.RunQueued,
			CreatedAt: base.Add(s.offset),
		}); err != nil {
			t.Fatalf("SaveRun(%s): %v", s.id, err)
		}
	}

	runs, err := store.ListRuns(ctx, "ingest_document")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "old" {
		t.Errorf("ListRuns(ingest_document) = %+v, want [new old]", runs)
	}

	all, err := store.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(all) returned %d runs, want 3", len(all))
	}
}

func TestRunStore_LastRunForKey(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	if err := store.SaveRun(ctx, &domain.Run{
		ID:        "run-1",
		Workflow:  "ingest_document",
		RateKey:   "doc1",
		Status:    domain.RunSucceeded,
		CreatedAt: created,
	}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.LastRunForKey(ctx, "ingest_document", "doc1", time.Now().Add(-4*time.Hour))
	if err != nil {
		t.Fatalf("LastRunForKey: %v", err)
	}
	if !got.Equal(created) {
		t.Errorf("LastRunForKey = %v, want %v", got, created)
	}

	if _, err := store.LastRunForKey(ctx, "ingest_document", "doc1", time.Now()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("outside window: err = %v, want ErrNotFound", err)
	}
	if _, err := store.LastRunForKey(ctx, "ingest_document", "doc2", time.Now().Add(-4*time.Hour)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other key: err = %v, want ErrNotFound", err)
	}
}

func TestRunStore_Steps(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	step := &domain.StepRecord{
		RunID:    "run-1",
		StepName: "load-and-chunk",
		Status:   domain.StepRunning,
		Attempts: 1,
	}
	if err := store.SaveStep(ctx, step); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}

	step.Status = domain.StepCompleted
	step.Output = json.RawMessage(`{"chunks":["a"]}`)
	step.CompletedAt = time.Now()
	if err := store.SaveStep(ctx, step); err != nil {
		t.Fatalf("SaveStep(update): %v", err)
	}

	got, err := store.GetStep(ctx, "run-1", "load-and-chunk")
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.Status != domain.StepCompleted {
		t.Errorf("status = %q, want %q", got.Status, domain.StepCompleted)
	}
	if string(got.Output) != `{"chunks":["a"]}` {
		t.Errorf("output = %s", got.Output)
	}

	if _, err := store.GetStep(ctx, "run-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetStep(missing) = %v, want ErrNotFound", err)
	}
	if err := store.SaveStep(ctx, &domain.StepRecord{RunID: "run-1"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("SaveStep(no step name) = %v, want ErrInvalidArgument", err)
	}
}
