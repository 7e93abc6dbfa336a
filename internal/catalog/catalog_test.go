// ABOUTME: Tests for the tool catalog, the built-in entries, and external catalog sources
// ABOUTME: Covers ordering, lookup, duplicate rejection, and JSON/YAML/URL loading

package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_OrderAndLookup(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{
		"get_events",
		"get_markets",
		"get_trades",
		"get_market_by_mint",
		"get_live_data",
	}, c.Names())
	assert.Equal(t, 5, c.Len())

	tool, err := c.Get("get_market_by_mint")
	require.NoError(t, err)
	assert.Equal(t, []string{"mint"}, tool.RequiredArguments())

	_, err = c.Get("get_nothing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestDefault_SchemasAreValidJSON(t *testing.T) {
	for _, tool := range Default().Tools() {
		assert.True(t, json.Valid(tool.InputSchema), "schema for %s", tool.Name)
		assert.NotEmpty(t, tool.Description, "description for %s", tool.Name)
	}
}

func TestTools_ReturnsCopy(t *testing.T) {
	c := Default()
	tools := c.Tools()
	tools[0].Name = "mutated"

	assert.Equal(t, "get_events", c.Tools()[0].Name)
}

func TestNew_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	_, err := New([]Tool{{Name: "a"}, {Name: "a"}})
	assert.ErrorIs(t, err, ErrDuplicateTool)

	_, err = New([]Tool{{Name: ""}})
	assert.Error(t, err)
}

func TestNew_FillsMissingSchema(t *testing.T) {
	c, err := New([]Tool{{Name: "get_x", Description: "x"}})
	require.NoError(t, err)

	tool, err := c.Get("get_x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(tool.InputSchema))
	assert.Empty(t, tool.RequiredArguments())
}

func TestNewServerInfo(t *testing.T) {
	data, err := json.Marshal(NewServerInfo("1.2.3"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"protocolVersion": "2025-06-18",
		"capabilities": {"tools": {"listChanged": false}, "prompts": {}, "resources": {}},
		"serverInfo": {"name": "dflow-mcp-server", "version": "1.2.3", "description": "Prediction Market Metadata API server for DFlow platform"}
	}`, string(data))
}

func TestLoad_EmptySourceIsDefault(t *testing.T) {
	c, err := Load(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Names(), c.Names())
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools":[
		{"name":"get_series","description":"Series","inputSchema":{"type":"object","properties":{},"required":["ticker"]}}
	]}`), 0644))

	c, err := Load(context.Background(), path, nil)
	require.NoError(t, err)

	tool, err := c.Get("get_series")
	require.NoError(t, err)
	assert.Equal(t, []string{"ticker"}, tool.RequiredArguments())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  - name: get_series
    description: Series list
    inputSchema:
      type: object
      properties:
        limit:
          type: integer
      required: []
  - name: get_outcomes
    description: Outcomes
`), 0644))

	c, err := Load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_series", "get_outcomes"}, c.Names())

	tool, err := c.Get("get_series")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{"limit":{"type":"integer"}},"required":[]}`, string(tool.InputSchema))
}

func TestLoad_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"tools":[{"name":"get_events","description":"remote"}]}`)
	}))
	defer srv.Close()

	c, err := Load(context.Background(), srv.URL+"/llms-dflow.json", srv.Client())
	require.NoError(t, err)

	tool, err := c.Get("get_events")
	require.NoError(t, err)
	assert.Equal(t, "remote", tool.Description)
}

func TestLoad_URLFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL, srv.Client())
	assert.Error(t, err)
}

func TestLoad_EmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools":[]}`), 0644))

	_, err := Load(context.Background(), path, nil)
	assert.Error(t, err)
}
