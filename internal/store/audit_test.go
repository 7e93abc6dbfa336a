// ABOUTME: Tests for tool call audit store operations
// ABOUTME: Covers recording successes and failures, ordering, tool filtering, and limits

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dflow-mcp/internal/auth"
	"github.com/2389/dflow-mcp/internal/mcp"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordToolCall_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := store.RecordToolCall(ctx, mcp.ToolCall{
		RequestID: "req-1",
		Tool:      "get_event_by_mint",
		Arguments: map[string]any{"mint": "So11111111111111111111111111111111111111112"},
		Duration:  250 * time.Millisecond,
		StartedAt: started,
	})
	require.NoError(t, err)

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "req-1", e.ID)
	assert.Equal(t, "get_event_by_mint", e.Tool)
	assert.Equal(t, "So11111111111111111111111111111111111111112", e.Arguments["mint"])
	assert.True(t, e.OK)
	assert.Empty(t, e.Error)
	assert.Equal(t, 250*time.Millisecond, e.Duration)
	assert.True(t, started.Equal(e.Timestamp))
}

func TestRecordToolCall_Failure(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.RecordToolCall(ctx, mcp.ToolCall{
		Tool: "get_events",
		Err:  errors.New("HTTP 500: upstream down"),
	})
	require.NoError(t, err)

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].OK)
	assert.Equal(t, "HTTP 500: upstream down", entries[0].Error)
	assert.Empty(t, entries[0].Arguments)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecordToolCall_Principal(t *testing.T) {
	store := setupTestStore(t)
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{ID: "alice", Method: auth.MethodJWT})

	require.NoError(t, store.RecordToolCall(ctx, mcp.ToolCall{Tool: "get_markets"}))
	require.NoError(t, store.RecordToolCall(context.Background(), mcp.ToolCall{Tool: "get_events"}))

	entries, err := store.ListToolCalls(context.Background(), ToolCallFilter{Tool: "get_markets"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Principal)

	anonymous, err := store.ListToolCalls(context.Background(), ToolCallFilter{Tool: "get_events"})
	require.NoError(t, err)
	require.Len(t, anonymous, 1)
	assert.Empty(t, anonymous[0].Principal)
}

func TestRecordToolCall_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const workers, perWorker = 32, 20
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				errs <- store.RecordToolCall(ctx, mcp.ToolCall{
					RequestID: fmt.Sprintf("w%d-%d", w, i),
					Tool:      "get_trades",
				})
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, entries, workers*perWorker)
}

func TestListToolCalls_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, tool := range []string{"get_events", "get_markets", "get_series"} {
		require.NoError(t, store.RecordToolCall(ctx, mcp.ToolCall{
			Tool:      tool,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "get_series", entries[0].Tool)
	assert.Equal(t, "get_events", entries[2].Tool)
}

func TestListToolCalls_ByTool(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, tool := range []string{"get_events", "get_markets", "get_events"} {
		require.NoError(t, store.RecordToolCall(ctx, mcp.ToolCall{Tool: tool}))
	}

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{Tool: "get_events"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "get_events", e.Tool)
	}

	none, err := store.ListToolCalls(ctx, ToolCallFilter{Tool: "get_live_data"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListToolCalls_Limit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, store.RecordToolCall(ctx, mcp.ToolCall{Tool: "get_series"}))
	}

	entries, err := store.ListToolCalls(ctx, ToolCallFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestNormalizeAuditLimit(t *testing.T) {
	assert.Equal(t, 100, normalizeAuditLimit(0))
	assert.Equal(t, 100, normalizeAuditLimit(-3))
	assert.Equal(t, 42, normalizeAuditLimit(42))
	assert.Equal(t, 1000, normalizeAuditLimit(5000))
}
