// ABOUTME: Renders the tool catalog and path alias table as an HTML docs page
// ABOUTME: Markdown is built once at startup and converted with goldmark

package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"slices"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/dflow-mcp/internal/catalog"
	"github.com/2389/dflow-mcp/internal/mcp"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>body{font-family:system-ui,sans-serif;max-width:56rem;margin:2rem auto;padding:0 1rem}code{background:#f3f3f3;padding:0 .2rem}table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:.3rem .6rem}</style>
</head>
<body>
%s
</body>
</html>
`

type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type toolSchema struct {
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// docsMarkdown describes every tool and alias in Markdown.
func docsMarkdown(cat *catalog.Catalog, aliases mcp.Aliases, version string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", catalog.ServerName, version)
	b.WriteString("MCP server for DFlow prediction market metadata. ")
	b.WriteString("POST JSON-RPC 2.0 or Claude Desktop RPC envelopes to any alias below.\n\n")

	b.WriteString("## Tools\n\n")
	for _, tool := range cat.Tools() {
		fmt.Fprintf(&b, "### `%s`\n\n%s\n\n", tool.Name, tool.Description)

		var schema toolSchema
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil || len(schema.Properties) == 0 {
			b.WriteString("No parameters.\n\n")
			continue
		}

		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("| parameter | type | required | description |\n|---|---|---|---|\n")
		for _, name := range names {
			p := schema.Properties[name]
			required := "no"
			if slices.Contains(schema.Required, name) {
				required = "yes"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n", name, p.Type, required, tableCell(p.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Endpoints\n\n| purpose | paths |\n|---|---|\n")
	for _, row := range []struct {
		purpose string
		paths   []string
	}{
		{"bootstrap (default `initialize`)", aliases.Bootstrap},
		{"event stream (GET, SSE)", aliases.Events},
		{"tools list (default `tools/list`)", aliases.ToolsList},
		{"tools call (default `tools/call`)", aliases.ToolsCall},
	} {
		quoted := make([]string, len(row.paths))
		for i, p := range row.paths {
			quoted[i] = "`" + p + "`"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", row.purpose, strings.Join(quoted, ", "))
	}
	b.WriteString("\nLiveness: `GET /health`.\n")

	return b.String()
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// renderDocs converts the catalog docs to a complete HTML page.
func renderDocs(cat *catalog.Catalog, aliases mcp.Aliases, version string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(docsMarkdown(cat, aliases, version)), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	title := html.EscapeString(catalog.ServerName + " " + version)
	return fmt.Appendf(nil, docsPage, title, body.String()), nil
}

func docsHandler(page []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
}
