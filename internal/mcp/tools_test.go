// ABOUTME: Tests for the tool invocation handler.
// ABOUTME: Checks route resolution, argument validation, fallback policy, error wrapping, and auditing.

package mcp

import (
	"context"
	"errors"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dflow-mcp/internal/backend"
	"github.com/2389/dflow-mcp/internal/catalog"
)

func newTestInvoker(t *testing.T, be *fakeBackend, fallback bool, audit AuditRecorder) *Invoker {
	t.Helper()
	inv, err := NewInvoker(InvokerConfig{
		Backend:  be,
		Catalog:  catalog.Default(),
		Fallback: fallback,
		Audit:    audit,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return inv
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok)
	assert.Equal(t, "text", text.Type)
	return text.Text
}

func TestInvoke_ListRoutesForwardArguments(t *testing.T) {
	tests := []struct {
		tool string
		path string
	}{
		{"get_events", "/api/v1/events"},
		{"get_markets", "/api/v1/markets"},
		{"get_trades", "/api/v1/trades"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			be := &fakeBackend{}
			inv := newTestInvoker(t, be, false, nil)

			args := map[string]any{"limit": 5, "cursor": "abc"}
			_, err := inv.Invoke(context.Background(), tt.tool, args)
			require.NoError(t, err)

			calls := be.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "GET", calls[0].Method)
			assert.Equal(t, tt.path, calls[0].Path)
			assert.Equal(t, args, calls[0].Params)
		})
	}
}

func TestInvoke_MarketByMint(t *testing.T) {
	t.Run("builds path from mint", func(t *testing.T) {
		be := &fakeBackend{}
		inv := newTestInvoker(t, be, false, nil)

		_, err := inv.Invoke(context.Background(), "get_market_by_mint", map[string]any{"mint": "So1abc"})
		require.NoError(t, err)

		calls := be.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "/api/v1/markets/by-mint/So1abc", calls[0].Path)
		assert.Nil(t, calls[0].Params)
	})

	for name, args := range map[string]map[string]any{
		"absent": {},
		"null":   {"mint": nil},
		"empty":  {"mint": ""},
	} {
		t.Run("missing mint "+name, func(t *testing.T) {
			be := &fakeBackend{}
			inv := newTestInvoker(t, be, false, nil)

			_, err := inv.Invoke(context.Background(), "get_market_by_mint", args)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingArgument)
			assert.Empty(t, be.Calls())
		})
	}
}

func TestInvoke_LiveDataPrecedence(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		path string
	}{
		{"event ticker", map[string]any{"event_ticker": "X"}, "/api/v1/events/live-data/X"},
		{"market ticker", map[string]any{"market_ticker": "Y"}, "/api/v1/markets/live-data/Y"},
		{"both prefers event", map[string]any{"event_ticker": "X", "market_ticker": "Y"}, "/api/v1/events/live-data/X"},
		{"neither", map[string]any{}, "/api/v1/live-data"},
		{"empty event falls through", map[string]any{"event_ticker": "", "market_ticker": "Y"}, "/api/v1/markets/live-data/Y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &fakeBackend{}
			inv := newTestInvoker(t, be, false, nil)

			_, err := inv.Invoke(context.Background(), "get_live_data", tt.args)
			require.NoError(t, err)

			calls := be.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.path, calls[0].Path)
		})
	}
}

func TestInvoke_UnknownToolFallback(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		be := &fakeBackend{}
		inv := newTestInvoker(t, be, false, nil)

		_, err := inv.Invoke(context.Background(), "get_series", map[string]any{"limit": 1})
		assert.ErrorIs(t, err, ErrUnknownTool)
		assert.Empty(t, be.Calls())
	})

	t.Run("enabled strips get_ prefix", func(t *testing.T) {
		be := &fakeBackend{}
		inv := newTestInvoker(t, be, true, nil)

		_, err := inv.Invoke(context.Background(), "get_series", map[string]any{"limit": 1})
		require.NoError(t, err)

		calls := be.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "/api/v1/series", calls[0].Path)
		assert.Equal(t, map[string]any{"limit": 1}, calls[0].Params)
	})

	t.Run("enabled still rejects names without prefix", func(t *testing.T) {
		be := &fakeBackend{}
		inv := newTestInvoker(t, be, true, nil)

		_, err := inv.Invoke(context.Background(), "series", nil)
		assert.ErrorIs(t, err, ErrUnknownTool)
		assert.Empty(t, be.Calls())
	})
}

func TestInvoke_BackendErrorIsToolError(t *testing.T) {
	be := &fakeBackend{err: &backend.HTTPError{StatusCode: 502, Body: "bad gateway"}}
	inv := newTestInvoker(t, be, false, nil)

	args := map[string]any{"limit": 1}
	_, err := inv.Invoke(context.Background(), "get_events", args)
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "get_events", toolErr.Tool)
	assert.Equal(t, args, toolErr.Arguments)

	var httpErr *backend.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 502, httpErr.StatusCode)
	assert.Equal(t, "HTTP 502: bad gateway", err.Error())
	assert.Len(t, be.Calls(), 1, "failed calls are not retried")
}

func TestInvoke_PrettyPrintsBackendJSON(t *testing.T) {
	be := &fakeBackend{response: []byte(`{"zeta":1,"alpha":[true,null]}`)}
	inv := newTestInvoker(t, be, false, nil)

	result, err := inv.Invoke(context.Background(), "get_events", nil)
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"zeta\": 1,\n  \"alpha\": [\n    true,\n    null\n  ]\n}", resultText(t, result))
	assert.False(t, result.IsError)
}

func TestInvoke_RecordsAudit(t *testing.T) {
	audit := &recordingAudit{}

	be := &fakeBackend{}
	inv := newTestInvoker(t, be, false, audit)
	_, err := inv.Invoke(context.Background(), "get_trades", map[string]any{"limit": 2})
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "get_market_by_mint", nil)
	require.Error(t, err)

	require.Len(t, audit.calls, 2)
	assert.Equal(t, "get_trades", audit.calls[0].Tool)
	assert.NoError(t, audit.calls[0].Err)
	assert.NotEmpty(t, audit.calls[0].RequestID)
	assert.Equal(t, "get_market_by_mint", audit.calls[1].Tool)
	assert.ErrorIs(t, audit.calls[1].Err, ErrMissingArgument)
	assert.NotEqual(t, audit.calls[0].RequestID, audit.calls[1].RequestID)
}

func TestInvoke_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	audit := &recordingAudit{err: errors.New("disk full")}
	inv := newTestInvoker(t, &fakeBackend{}, false, audit)

	_, err := inv.Invoke(context.Background(), "get_events", nil)
	assert.NoError(t, err)
}

func TestInvoke_CatalogRequiredArguments(t *testing.T) {
	cat, err := catalog.New([]catalog.Tool{{
		Name:        "get_events",
		Description: "events needing a series",
		InputSchema: []byte(`{"type":"object","properties":{},"required":["series"]}`),
	}})
	require.NoError(t, err)

	be := &fakeBackend{}
	inv, err := NewInvoker(InvokerConfig{Backend: be, Catalog: cat, Logger: discardLogger()})
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "get_events", map[string]any{})
	assert.ErrorIs(t, err, ErrMissingArgument)
	assert.Empty(t, be.Calls())
}
