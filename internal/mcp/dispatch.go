// ABOUTME: Method registry and dispatcher for canonical MCP requests.
// ABOUTME: Each dialect has its own method set; notifications never produce a response.

package mcp

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/dflow-mcp/internal/catalog"
)

// Method is a canonical RPC method name.
type Method string

const (
	MethodInitialize    = Method(mcpgo.MethodInitialize)
	MethodToolsList     = Method(mcpgo.MethodToolsList)
	MethodToolsCall     = Method(mcpgo.MethodToolsCall)
	MethodToolsDescribe Method = "tools/describe"
	MethodServerInfo    Method = "server/info"
	MethodHealth        Method = "health"
	MethodConnect       Method = "connectMCPServer"
	MethodGetModels     Method = "getModels"
)

// dialectMethods lists the methods each dialect may call, in advertised order.
var dialectMethods = map[Dialect][]Method{
	DialectStandard: {
		MethodInitialize,
		MethodToolsList,
		MethodToolsCall,
		MethodToolsDescribe,
		MethodServerInfo,
		MethodHealth,
	},
	DialectClaude: {
		MethodConnect,
		MethodGetModels,
		MethodHealth,
	},
}

// timestampLayout matches ISO-8601 with millisecond precision in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Catalog   *catalog.Catalog
	Invoker   *Invoker
	Version   string
	PublicURL string // server_url reported by connectMCPServer when the client sends none
	Logger    *slog.Logger
}

// Dispatcher routes canonical requests to handlers. It holds no mutable state.
type Dispatcher struct {
	catalog   *catalog.Catalog
	invoker   *Invoker
	info      catalog.ServerInfo
	version   string
	publicURL string
	logger    *slog.Logger
	startedAt time.Time
	now       func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("invoker is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		catalog:   cfg.Catalog,
		invoker:   cfg.Invoker,
		info:      catalog.NewServerInfo(cfg.Version),
		version:   cfg.Version,
		publicURL: cfg.PublicURL,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}, nil
}

// Methods returns the method names available to a dialect.
func (d *Dispatcher) Methods(dialect Dialect) []string {
	methods := dialectMethods[dialect]
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return names
}

// Dispatch handles req and returns the response to send, or nil for notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, req CanonicalRequest) *Response {
	d.logger.Debug("dispatching request",
		"method", req.Method,
		"dialect", req.Dialect,
	)

	if req.IsNotification() {
		d.logger.Debug("accepted MCP notification", "method", req.Method)
		return nil
	}

	method := Method(req.Method)
	if !slices.Contains(dialectMethods[req.Dialect], method) {
		return Failure(req.ID, d.methodNotFound(req))
	}

	result, rpcErr := d.handle(ctx, method, req)
	if rpcErr != nil {
		return Failure(req.ID, rpcErr)
	}
	return Success(req.ID, result)
}

func (d *Dispatcher) handle(ctx context.Context, method Method, req CanonicalRequest) (any, *Error) {
	switch method {
	case MethodInitialize:
		return d.info, nil
	case MethodToolsList:
		return map[string]any{"tools": d.catalog.Tools()}, nil
	case MethodToolsCall:
		return d.handleToolsCall(ctx, req)
	case MethodToolsDescribe:
		return d.handleToolsDescribe(req)
	case MethodServerInfo:
		return map[string]any{
			"serverInfo":      d.info.ServerInfo,
			"protocolVersion": d.info.ProtocolVersion,
			"capabilities":    d.info.Capabilities,
			"tools_count":     d.catalog.Len(),
			"uptime_seconds":  int64(d.now().Sub(d.startedAt).Seconds()),
		}, nil
	case MethodHealth:
		return map[string]any{
			"status":              "healthy",
			"timestamp":           d.timestamp(),
			"version":             d.version,
			"methods":             d.Methods(req.Dialect),
			"tools_count":         d.catalog.Len(),
			"protocols_supported": []string{"jsonrpc", string(DialectClaude)},
		}, nil
	case MethodConnect:
		return d.handleConnect(req), nil
	case MethodGetModels:
		return map[string]any{
			"models": []map[string]any{{
				"id":           "dflow-prediction-markets",
				"name":         "DFlow Prediction Markets",
				"description":  "Access prediction market events, markets, trades, and live data",
				"provider":     catalog.ServerName,
				"capabilities": []string{"tools", "text-generation"},
			}},
		}, nil
	default:
		return nil, d.methodNotFound(req)
	}
}

func (d *Dispatcher) methodNotFound(req CanonicalRequest) *Error {
	return NewError(CodeMethodNotFound, "Method not found", map[string]any{
		"available_methods": d.Methods(req.Dialect),
		"format":            req.Dialect,
		"request_method":    req.Method,
	})
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req CanonicalRequest) (any, *Error) {
	name, _ := req.Params["name"].(string)
	if name == "" {
		return nil, NewError(CodeInvalidParams, "Invalid params", "tool name is required")
	}

	var args map[string]any
	switch a := req.Params["arguments"].(type) {
	case nil:
		args = map[string]any{}
	case map[string]any:
		args = a
	default:
		return nil, NewError(CodeInvalidParams, "Invalid params", "arguments must be an object")
	}

	result, err := d.invoker.Invoke(ctx, name, args)
	if err != nil {
		return nil, toolFailure(name, args, err)
	}
	return result, nil
}

// toolFailure maps an invocation error to its RPC error.
func toolFailure(name string, args map[string]any, err error) *Error {
	data := map[string]any{"tool": name, "arguments": args}
	if errors.Is(err, ErrMissingArgument) {
		return NewError(CodeInvalidParams, err.Error(), data)
	}
	return NewError(CodeInternalError, err.Error(), data)
}

func (d *Dispatcher) handleToolsDescribe(req CanonicalRequest) (any, *Error) {
	name, _ := req.Params["name"].(string)
	tool, err := d.catalog.Get(name)
	if err != nil {
		return nil, NewError(CodeInvalidParams, "Tool not found", map[string]any{
			"name":            name,
			"available_tools": d.catalog.Names(),
		})
	}
	return tool, nil
}

func (d *Dispatcher) handleConnect(req CanonicalRequest) map[string]any {
	serverURL, _ := req.Params["server_url"].(string)
	if serverURL == "" {
		serverURL = d.publicURL
	}

	return map[string]any{
		"name":            d.info.ServerInfo.Name,
		"version":         d.info.ServerInfo.Version,
		"protocolVersion": d.info.ProtocolVersion,
		"capabilities":    d.info.Capabilities,
		"serverInfo":      d.info.ServerInfo,
		"tools":           d.catalog.Tools(),
		"prompts":         []any{},
		"resources":       []any{},
		"connected":       true,
		"server_url":      serverURL,
		"status":          "connected",
		"timestamp":       d.timestamp(),
		"transport":       "http_post",
	}
}

func (d *Dispatcher) timestamp() string {
	return d.now().UTC().Format(timestampLayout)
}
