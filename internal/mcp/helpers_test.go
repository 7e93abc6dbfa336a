// ABOUTME: Shared fixtures for the mcp package tests.
// ABOUTME: Provides a recording fake backend, an audit recorder, and a server builder.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/dflow-mcp/internal/catalog"
)

type backendRequest struct {
	Method string
	Path   string
	Params map[string]any
}

// fakeBackend records every request and replies with a fixed body or error.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []backendRequest
	response json.RawMessage
	err      error
	panicMsg string
}

func (f *fakeBackend) Request(_ context.Context, method, path string, params map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, backendRequest{Method: method, Path: path, Params: params})
	f.mu.Unlock()

	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.response, nil
}

func (f *fakeBackend) Calls() []backendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backendRequest, len(f.calls))
	copy(out, f.calls)
	return out
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []ToolCall
	err   error
}

func (a *recordingAudit) RecordToolCall(_ context.Context, call ToolCall) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call)
	return a.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, be *fakeBackend, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Catalog:   catalog.Default(),
		Backend:   be,
		Version:   "test",
		PublicURL: "https://example.test/api/mcp",
		Logger:    discardLogger(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)
	return server
}

// serve runs one request through a mux with the server's routes registered.
func serve(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	return resp
}

func errorCode(t *testing.T, resp map[string]any) int {
	t.Helper()
	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok, "expected error object in %v", resp)
	return int(errObj["code"].(float64))
}
