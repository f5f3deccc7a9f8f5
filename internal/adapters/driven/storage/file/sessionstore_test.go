package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndHistory(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, "report.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	history, err := store.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.AppendMessage(ctx, id, "q1", "a1", []string{"report.pdf"}))
	require.NoError(t, store.AppendMessage(ctx, id, "q2", "a2", nil))

	history, err = store.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Question)
	assert.Equal(t, "a1", history[0].Answer)
	assert.Equal(t, []string{"report.pdf"}, history[0].Sources)
	assert.Equal(t, "q2", history[1].Question)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestSessionStore_OnDiskLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, "report.pdf")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, id, "q", "a", []string{"report.pdf"}))

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, id, raw["session_id"])
	assert.Equal(t, "report.pdf", raw["pdf_name"])
	assert.Contains(t, raw, "created_at")
	messages, ok := raw["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	first, ok := messages[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "q", first["question"])
	assert.Equal(t, "a", first["answer"])
}

func TestSessionStore_UnknownSessionNoOp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "no-such-id", "q", "a", nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no-op append must not create a file")

	history, err := store.GetHistory(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionStore_ListMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// Write records with controlled creation times rather than racing
	// the clock.
	times := map[string]time.Time{
		"older": time.Now().Add(-2 * time.Hour),
		"newer": time.Now().Add(-time.Hour),
	}
	for name, at := range times {
		record := sessionRecord{
			SessionID: name,
			PDFName:   name + ".pdf",
			CreatedAt: at.UTC().Format(time.RFC3339),
			Messages:  []messageRecord{},
		}
		require.NoError(t, store.write(record))
	}

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "newer", sessions[0].SessionID)
	assert.Equal(t, "older", sessions[1].SessionID)
}

func TestSessionStore_ListSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.CreateSession(ctx, "good.pdf")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("not json"), 0o644))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "good.pdf", sessions[0].PDFName)
}
