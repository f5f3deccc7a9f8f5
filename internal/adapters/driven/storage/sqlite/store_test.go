package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore_RunsMigrations(t *testing.T) {
	store := newTestStore(t)

	// Opening the same directory again must be a no-op, not a failure.
	again, err := NewStore(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestVectorStore_UpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	vectors := store.VectorStore(2)
	ctx := context.Background()

	records := []domain.VectorRecord{
		{ID: "doc1:0", Vector: []float32{1, 0}, Source: "doc1", Text: "alpha"},
	}

	n, err := vectors.Upsert(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records[0].Text = "alpha v2"
	n, err = vectors.Upsert(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := vectors.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "alpha v2", hits[0].Text)
}

func TestVectorStore_BatchAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	vectors := store.VectorStore(2)
	ctx := context.Background()

	_, err := vectors.Upsert(ctx, []domain.VectorRecord{
		{ID: "good", Vector: []float32{1, 0}, Source: "doc1", Text: "ok"},
		{ID: "bad", Vector: []float32{1, 0, 0}, Source: "doc1", Text: "wrong dims"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "bad")

	count, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestVectorStore_SearchOrderAndTies(t *testing.T) {
	store := newTestStore(t)
	vectors := store.VectorStore(2)
	ctx := context.Background()

	_, err := vectors.Upsert(ctx, []domain.VectorRecord{
		{ID: "tie-a", Vector: []float32{1, 0}, Source: "doc1", Text: "a"},
		{ID: "tie-b", Vector: []float32{1, 0}, Source: "doc1", Text: "b"},
		{ID: "worse", Vector: []float32{0, 1}, Source: "doc2", Text: "c"},
	})
	require.NoError(t, err)

	// Overwriting tie-a must not move it behind tie-b.
	_, err = vectors.Upsert(ctx, []domain.VectorRecord{
		{ID: "tie-a", Vector: []float32{1, 0}, Source: "doc1", Text: "a2"},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		hits, err := vectors.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "tie-a", hits[0].ID)
		assert.Equal(t, "tie-b", hits[1].ID)
		assert.Equal(t, "worse", hits[2].ID)
	}
}

func TestVectorStore_SearchEmptyAndInvalid(t *testing.T) {
	store := newTestStore(t)
	vectors := store.VectorStore(2)
	ctx := context.Background()

	hits, err := vectors.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = vectors.Search(ctx, []float32{1, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	now := time.Now()
	run := &domain.Run{
		ID:        "run-1",
		Workflow:  "ingest_document",
		RateKey:   "doc1",
		Status:    domain.RunQueued,
		Payload:   json.RawMessage(`{"pdf_path":"a.pdf"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, runs.SaveRun(ctx, run))

	got, err := runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunQueued, got.Status)
	assert.Equal(t, "doc1", got.RateKey)
	assert.JSONEq(t, `{"pdf_path":"a.pdf"}`, string(got.Payload))

	run.Status = domain.RunSucceeded
	run.Output = json.RawMessage(`{"ingested":3}`)
	run.UpdatedAt = time.Now()
	require.NoError(t, runs.SaveRun(ctx, run))

	got, err = runs.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, got.Status)
	assert.JSONEq(t, `{"ingested":3}`, string(got.Output))

	_, err = runs.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_ListRuns_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, runs.SaveRun(ctx, &domain.Run{
			ID:        id,
			Workflow:  "ingest_document",
			Status:    domain.RunQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := runs.ListRuns(ctx, "ingest_document")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[2].ID)

	list, err = runs.ListRuns(ctx, "query_document")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRunStore_LastRunForKey(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	require.NoError(t, runs.SaveRun(ctx, &domain.Run{
		ID:        "run-1",
		Workflow:  "ingest_document",
		RateKey:   "doc1",
		Status:    domain.RunSucceeded,
		CreatedAt: created,
		UpdatedAt: created,
	}))

	got, err := runs.LastRunForKey(ctx, "ingest_document", "doc1", time.Now().Add(-4*time.Hour))
	require.NoError(t, err)
	assert.WithinDuration(t, created, got, time.Second)

	// Outside the window.
	_, err = runs.LastRunForKey(ctx, "ingest_document", "doc1", time.Now().Add(-time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Different key.
	_, err = runs.LastRunForKey(ctx, "ingest_document", "doc2", time.Now().Add(-4*time.Hour))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_ListRuns_SameSecondOrdering(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	// Fractional seconds chosen so a trailing-zero-trimming format
	// would invert string order: ".12" sorts after ".123456789".
	older := time.Date(2026, 1, 2, 10, 0, 0, 120000000, time.UTC)
	newer := time.Date(2026, 1, 2, 10, 0, 0, 123456789, time.UTC)
	for id, created := range map[string]time.Time{"older": older, "newer": newer} {
		require.NoError(t, runs.SaveRun(ctx, &domain.Run{
			ID:        id,
			Workflow:  "ingest_document",
			Status:    domain.RunSucceeded,
			CreatedAt: created,
			UpdatedAt: created,
		}))
	}

	list, err := runs.ListRuns(ctx, "ingest_document")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestRunStore_LastRunForKey_SubsecondWindow(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 10, 0, 0, 120000000, time.UTC)
	require.NoError(t, runs.SaveRun(ctx, &domain.Run{
		ID:        "run-1",
		Workflow:  "ingest_document",
		RateKey:   "doc1",
		Status:    domain.RunSucceeded,
		CreatedAt: created,
		UpdatedAt: created,
	}))

	// The run predates the window start by a fraction of a second.
	since := time.Date(2026, 1, 2, 10, 0, 0, 123456789, time.UTC)
	_, err := runs.LastRunForKey(ctx, "ingest_document", "doc1", since)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := runs.LastRunForKey(ctx, "ingest_document", "doc1", created)
	require.NoError(t, err)
	assert.True(t, got.Equal(created), "got %v, want %v", got, created)
}

func TestRunStore_Steps(t *testing.T) {
	store := newTestStore(t)
	runs := store.RunStore()
	ctx := context.Background()

	step := &domain.StepRecord{
		RunID:    "run-1",
		StepName: "load-and-chunk",
		Status:   domain.StepRunning,
		Attempts: 1,
	}
	require.NoError(t, runs.SaveStep(ctx, step))

	step.Status = domain.StepCompleted
	step.Output = json.RawMessage(`{"chunks":["a","b"]}`)
	step.CompletedAt = time.Now()
	require.NoError(t, runs.SaveStep(ctx, step))

	got, err := runs.GetStep(ctx, "run-1", "load-and-chunk")
	require.NoError(t, err)
	assert.Equal(t, domain.StepCompleted, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.JSONEq(t, `{"chunks":["a","b"]}`, string(got.Output))
	assert.False(t, got.CompletedAt.IsZero())

	_, err = runs.GetStep(ctx, "run-1", "missing-step")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
