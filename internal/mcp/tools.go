// ABOUTME: Tool invocation handler mapping catalog tool names to backend REST calls.
// ABOUTME: Wraps backend JSON as MCP text content and records each call for auditing.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/dflow-mcp/internal/backend"
	"github.com/2389/dflow-mcp/internal/catalog"
)

var (
	// ErrUnknownTool indicates no backend route exists for the tool name.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingArgument indicates a required tool argument was absent or empty.
	ErrMissingArgument = errors.New("missing required argument")
)

// ToolError is a failed invocation, carrying the tool name and arguments for diagnosis.
type ToolError struct {
	Tool      string
	Arguments map[string]any
	Err       error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ToolCall describes one finished invocation.
type ToolCall struct {
	RequestID string
	Tool      string
	Arguments map[string]any
	Err       error
	Duration  time.Duration
	StartedAt time.Time
}

// AuditRecorder persists tool calls. Failures are logged, never surfaced to callers.
type AuditRecorder interface {
	RecordToolCall(ctx context.Context, call ToolCall) error
}

// backendCall is the resolved REST request for a tool.
type backendCall struct {
	path  string
	query map[string]any
}

type route func(args map[string]any) (backendCall, error)

// routes is the fixed tool-to-endpoint table.
var routes = map[string]route{
	"get_events":  listRoute("/api/v1/events"),
	"get_markets": listRoute("/api/v1/markets"),
	"get_trades":  listRoute("/api/v1/trades"),
	"get_market_by_mint": func(args map[string]any) (backendCall, error) {
		mint, ok := stringArg(args, "mint")
		if !ok {
			return backendCall{}, fmt.Errorf("%w: mint", ErrMissingArgument)
		}
		return backendCall{path: "/api/v1/markets/by-mint/" + url.PathEscape(mint)}, nil
	},
	"get_live_data": func(args map[string]any) (backendCall, error) {
		if ticker, ok := stringArg(args, "event_ticker"); ok {
			return backendCall{path: "/api/v1/events/live-data/" + url.PathEscape(ticker)}, nil
		}
		if ticker, ok := stringArg(args, "market_ticker"); ok {
			return backendCall{path: "/api/v1/markets/live-data/" + url.PathEscape(ticker)}, nil
		}
		return backendCall{path: "/api/v1/live-data"}, nil
	},
}

func listRoute(path string) route {
	return func(args map[string]any) (backendCall, error) {
		return backendCall{path: path, query: args}, nil
	}
}

// stringArg returns the argument as a path segment; absent, null, and "" count as missing.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", false
	}
	s := backend.QueryValue(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// InvokerConfig holds configuration for the tool invoker.
type InvokerConfig struct {
	Backend  backend.Requester
	Catalog  *catalog.Catalog
	Fallback bool // resolve unknown get_<x> names to GET /api/v1/<x>
	Audit    AuditRecorder
	Logger   *slog.Logger
}

// Invoker executes tools against the backend.
type Invoker struct {
	backend  backend.Requester
	catalog  *catalog.Catalog
	fallback bool
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewInvoker creates a tool invoker.
func NewInvoker(cfg InvokerConfig) (*Invoker, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Invoker{
		backend:  cfg.Backend,
		catalog:  cfg.Catalog,
		fallback: cfg.Fallback,
		audit:    cfg.Audit,
		logger:   logger,
	}, nil
}

// Invoke runs the named tool with args. Errors are always *ToolError.
// At most one backend request is made, and none when argument checks fail.
func (inv *Invoker) Invoke(ctx context.Context, name string, args map[string]any) (*mcpgo.CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}

	requestID := uuid.New().String()
	start := time.Now()

	result, err := inv.invoke(ctx, name, args)
	duration := time.Since(start)

	if err != nil {
		err = &ToolError{Tool: name, Arguments: args, Err: err}
		inv.logger.Warn("tool execution failed",
			"tool_name", name,
			"request_id", requestID,
			"duration", duration,
			"error", err,
		)
	} else {
		inv.logger.Info("tool call complete",
			"tool_name", name,
			"request_id", requestID,
			"duration", duration,
		)
	}

	if inv.audit != nil {
		call := ToolCall{
			RequestID: requestID,
			Tool:      name,
			Arguments: args,
			Err:       err,
			Duration:  duration,
			StartedAt: start,
		}
		if auditErr := inv.audit.RecordToolCall(ctx, call); auditErr != nil {
			inv.logger.Warn("failed to record tool call", "request_id", requestID, "error", auditErr)
		}
	}

	return result, err
}

func (inv *Invoker) invoke(ctx context.Context, name string, args map[string]any) (*mcpgo.CallToolResult, error) {
	if tool, err := inv.catalog.Get(name); err == nil {
		for _, required := range tool.RequiredArguments() {
			if _, ok := stringArg(args, required); !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingArgument, required)
			}
		}
	}

	call, err := inv.resolve(name, args)
	if err != nil {
		return nil, err
	}

	inv.logger.Debug("calling backend", "tool_name", name, "path", call.path)

	raw, err := inv.backend.Request(ctx, http.MethodGet, call.path, call.query)
	if err != nil {
		return nil, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("formatting backend response: %w", err)
	}
	return mcpgo.NewToolResultText(pretty.String()), nil
}

func (inv *Invoker) resolve(name string, args map[string]any) (backendCall, error) {
	if r, ok := routes[name]; ok {
		return r(args)
	}
	if inv.fallback {
		if rest, ok := strings.CutPrefix(name, "get_"); ok && rest != "" {
			return backendCall{path: "/api/v1/" + url.PathEscape(rest), query: args}, nil
		}
	}
	return backendCall{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}
