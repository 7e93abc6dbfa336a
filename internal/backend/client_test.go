// ABOUTME: Tests for the backend REST client
// ABOUTME: Uses httptest servers to check query encoding, JSON bodies, headers, and error mapping

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: apiKey})
	require.NoError(t, err)
	return c
}

func TestRequest_GetEncodesQuery(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"events":[]}`)
	}, "")

	raw, err := c.Request(context.Background(), http.MethodGet, "/api/v1/events", map[string]any{
		"limit":  float64(5),
		"cursor": "abc",
		"active": true,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"events":[]}`, string(raw))
	assert.Equal(t, "/api/v1/events", gotPath)
	assert.Equal(t, []string{"5"}, gotQuery["limit"])
	assert.Equal(t, []string{"abc"}, gotQuery["cursor"])
	assert.Equal(t, []string{"true"}, gotQuery["active"])
}

func TestRequest_GetRendersDecodedNumbers(t *testing.T) {
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `{}`)
	}, "")

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/events", map[string]any{
		"limit":  json.Number("5.0"),
		"cursor": json.Number("1e2"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"5"}, gotQuery["limit"])
	assert.Equal(t, []string{"100"}, gotQuery["cursor"])
}

func TestRequest_PostSendsJSONBody(t *testing.T) {
	var body map[string]any
	var contentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}, "")

	_, err := c.Request(context.Background(), http.MethodPost, "/api/v1/things", map[string]any{"name": "x"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]any{"name": "x"}, body)
}

func TestRequest_APIKeyHeader(t *testing.T) {
	var gotKey string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		_, _ = io.WriteString(w, `{}`)
	}, "backend-key")

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/live-data", nil)
	require.NoError(t, err)
	assert.Equal(t, "backend-key", gotKey)
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "market not found")
	}, "")

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/markets/by-mint/nope", nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "HTTP 404: market not found", err.Error())
}

func TestRequest_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	}, "")

	_, err := c.Request(context.Background(), http.MethodGet, "/api/v1/events", nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRequest_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = c.Request(context.Background(), http.MethodGet, "/api/v1/events", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calling backend")
}

func TestRequest_UnsupportedMethod(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost"})
	require.NoError(t, err)

	_, err = c.Request(context.Background(), http.MethodDelete, "/x", nil)
	assert.Error(t, err)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestQueryValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"abc", "abc"},
		{true, "true"},
		{float64(5), "5"},
		{float64(2.5), "2.5"},
		{float64(1e21), "1000000000000000000000"},
		{[]any{"a", float64(1)}, "a,1"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
		{json.Number("7"), "7"},
		{json.Number("5.0"), "5"},
		{json.Number("1e2"), "100"},
		{json.Number("2.50"), "2.5"},
		{[]any{json.Number("1.0"), "b"}, "1,b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QueryValue(tt.in))
	}
}
