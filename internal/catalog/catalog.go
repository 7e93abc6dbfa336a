// ABOUTME: Read-only tool catalog and server descriptor shared by every request.
// ABOUTME: Built once at startup from the built-in table or an external source, then only looked up.

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrToolNotFound indicates the requested tool is not in the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateTool indicates two catalog entries share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Tool is one MCP tool descriptor.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// RequiredArguments returns the names listed in the schema's "required" array.
func (t Tool) RequiredArguments() []string {
	var schema struct {
		Required []string `json:"required"`
	}
	if len(t.InputSchema) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return nil
	}
	return schema.Required
}

// Catalog is an ordered, immutable set of tools.
// Safe for concurrent readers; there are no writers after construction.
type Catalog struct {
	tools  []Tool
	byName map[string]int
}

// New builds a catalog, preserving order and rejecting empty or duplicate names.
func New(tools []Tool) (*Catalog, error) {
	c := &Catalog{
		tools:  make([]Tool, len(tools)),
		byName: make(map[string]int, len(tools)),
	}
	for i, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool at index %d has no name", i)
		}
		if _, exists := c.byName[t.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}
		if len(t.InputSchema) == 0 {
			t.InputSchema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
		}
		c.tools[i] = t
		c.byName[t.Name] = i
	}
	return c, nil
}

// Default returns the built-in prediction-market catalog.
func Default() *Catalog {
	c, err := New(builtinTools())
	if err != nil {
		panic(fmt.Sprintf("builtin catalog is invalid: %v", err))
	}
	return c
}

// Tools returns a copy of the catalog in declaration order.
func (c *Catalog) Tools() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Get looks up a tool by name.
func (c *Catalog) Get(name string) (Tool, error) {
	i, ok := c.byName[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return c.tools[i], nil
}

// Names returns tool names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}
