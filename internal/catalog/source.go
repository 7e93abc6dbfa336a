// ABOUTME: Loads an external tool catalog from a JSON/YAML file or an http(s) URL.
// ABOUTME: The document shape is {"tools": [{name, description, inputSchema}, ...]}.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxCatalogBytes caps the size of a remote catalog document.
const maxCatalogBytes = 4 << 20

type yamlTool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	InputSchema map[string]any `yaml:"inputSchema"`
}

// Load resolves source into a catalog. An empty source yields the built-in catalog.
// URLs are fetched once with client; nil client means http.DefaultClient.
func Load(ctx context.Context, source string, client *http.Client) (*Catalog, error) {
	if source == "" {
		return Default(), nil
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err := fetch(ctx, source, client)
		if err != nil {
			return nil, err
		}
		return decodeJSON(data)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return decodeJSON(data)
	}
}

func fetch(ctx context.Context, source string, client *http.Client) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("creating catalog request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return data, nil
}

func decodeJSON(data []byte) (*Catalog, error) {
	var doc struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog JSON: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, fmt.Errorf("catalog contains no tools")
	}
	return New(doc.Tools)
}

func decodeYAML(data []byte) (*Catalog, error) {
	var doc struct {
		Tools []yamlTool `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, fmt.Errorf("catalog contains no tools")
	}

	tools := make([]Tool, len(doc.Tools))
	for i, yt := range doc.Tools {
		tools[i] = Tool{Name: yt.Name, Description: yt.Description}
		if yt.InputSchema != nil {
			schema, err := json.Marshal(yt.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("encoding schema for %s: %w", yt.Name, err)
			}
			tools[i].InputSchema = schema
		}
	}
	return New(tools)
}
