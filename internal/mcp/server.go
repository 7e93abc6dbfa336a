// ABOUTME: HTTP transport adapter for the MCP router: CORS, verbs, SSE aliases, and path aliases.
// ABOUTME: Every alias reaches the same normalizer and dispatcher; only the default method differs.

package mcp

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/dflow-mcp/internal/backend"
	"github.com/2389/dflow-mcp/internal/catalog"
)

// Aliases maps each logical operation to the URL paths that reach it.
type Aliases struct {
	Bootstrap []string
	Events    []string
	ToolsList []string
	ToolsCall []string
}

// DefaultAliases returns the deployment's standard alias table.
func DefaultAliases() Aliases {
	return Aliases{
		Bootstrap: []string{"/mcp/v2/bootstrap", "/sse", "/mcp", "/api/mcp"},
		Events:    []string{"/sse", "/mcp/v2/events", "/mcp/events", "/api/mcp/events"},
		ToolsList: []string{"/mcp/v2/tools/list", "/sse/tools", "/mcp/tools", "/api/mcp/tools/list"},
		ToolsCall: []string{"/mcp/v2/tools/call", "/sse/call", "/mcp/call", "/api/mcp/tools/call"},
	}
}

// Paths returns every alias path once, in table order.
func (a Aliases) Paths() []string {
	seen := make(map[string]bool)
	var paths []string
	for _, group := range [][]string{a.Bootstrap, a.Events, a.ToolsList, a.ToolsCall} {
		for _, p := range group {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// Config holds configuration for the MCP server.
type Config struct {
	Catalog      *catalog.Catalog
	Backend      backend.Requester
	Version      string
	PublicURL    string
	ToolFallback bool
	Aliases      Aliases
	Audit        AuditRecorder
	Logger       *slog.Logger
}

// Server implements the MCP HTTP endpoints.
type Server struct {
	catalog        *catalog.Catalog
	dispatcher     *Dispatcher
	version        string
	aliases        Aliases
	defaultMethods map[string]Method
	eventPaths     map[string]bool
	logger         *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	invoker, err := NewInvoker(InvokerConfig{
		Backend:  cfg.Backend,
		Catalog:  cfg.Catalog,
		Fallback: cfg.ToolFallback,
		Audit:    cfg.Audit,
		Logger:   logger.With("component", "tools"),
	})
	if err != nil {
		return nil, err
	}

	dispatcher, err := NewDispatcher(DispatcherConfig{
		Catalog:   cfg.Catalog,
		Invoker:   invoker,
		Version:   cfg.Version,
		PublicURL: cfg.PublicURL,
		Logger:    logger.With("component", "dispatcher"),
	})
	if err != nil {
		return nil, err
	}

	aliases := cfg.Aliases
	if len(aliases.Paths()) == 0 {
		aliases = DefaultAliases()
	}

	s := &Server{
		catalog:        cfg.Catalog,
		dispatcher:     dispatcher,
		version:        cfg.Version,
		aliases:        aliases,
		defaultMethods: make(map[string]Method),
		eventPaths:     make(map[string]bool),
		logger:         logger,
	}

	// Later groups do not override earlier ones, so /sse stays a bootstrap alias.
	for _, group := range []struct {
		paths  []string
		method Method
	}{
		{aliases.Bootstrap, MethodInitialize},
		{aliases.ToolsList, MethodToolsList},
		{aliases.ToolsCall, MethodToolsCall},
	} {
		for _, p := range group.paths {
			if _, exists := s.defaultMethods[p]; !exists {
				s.defaultMethods[p] = group.method
			}
		}
	}
	for _, p := range aliases.Events {
		s.eventPaths[p] = true
	}

	return s, nil
}

// Dispatcher exposes the dispatcher for callers that bypass HTTP.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// RegisterRoutes registers every alias plus the /mcp/ and /api/mcp/ subtrees.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	registered := make(map[string]bool)
	for _, p := range append(s.aliases.Paths(), "/mcp/", "/api/mcp/") {
		if registered[p] {
			continue
		}
		registered[p] = true
		mux.Handle(p, s)
	}
}

// ServeHTTP is the single entry point for all MCP aliases.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	sse := s.isEventPath(path)

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in MCP handler", "path", path, "panic", rec)
			WriteError(w, s.logger, http.StatusInternalServerError, sse, NewError(CodeInternalError, "Internal error", nil))
		}
	}()

	switch r.Method {
	case http.MethodOptions:
		SetCORSHeaders(w.Header(), sse)
		w.Header().Set("Access-Control-Max-Age", corsMaxAge)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		s.handleGet(w, r, sse)
	case http.MethodPost:
		s.handlePost(w, r, sse)
	default:
		s.methodNotAllowed(w, sse)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, sse bool) {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		WriteError(w, s.logger, http.StatusBadRequest, sse, NewError(CodeTransportNotAllowed,
			"WebSocket transport is not supported; use HTTP POST with JSON-RPC", nil))
		return
	}
	if !sse {
		s.methodNotAllowed(w, sse)
		return
	}
	s.serveEvents(w, r)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, sse bool) {
	w.Header().Set("Allow", "GET, POST, OPTIONS")
	WriteError(w, s.logger, http.StatusMethodNotAllowed, sse, NewError(CodeInvalidRequest, "Method not allowed", nil))
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, sse bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		WriteError(w, s.logger, http.StatusBadRequest, sse, NewError(CodeParseError, "Parse error", "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		WriteError(w, s.logger, http.StatusBadRequest, sse, NewError(CodeInvalidRequest, "request body too large", nil))
		return
	}

	req, rpcErr := Normalize(body, string(s.defaultMethods[r.URL.Path]))
	if rpcErr != nil {
		status := http.StatusOK
		if rpcErr.Code == CodeParseError {
			status = http.StatusBadRequest
		}
		s.logger.Debug("rejected MCP request", "path", r.URL.Path, "code", rpcErr.Code)
		WriteResponse(w, s.logger, status, sse, Failure(req.ID, rpcErr))
		return
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"dialect", req.Dialect,
		"path", r.URL.Path,
	)

	resp := s.dispatcher.Dispatch(r.Context(), req)
	if resp == nil {
		SetCORSHeaders(w.Header(), sse)
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteResponse(w, s.logger, http.StatusOK, sse, resp)
}

// isEventPath reports whether a GET on path opens the SSE stream.
func (s *Server) isEventPath(path string) bool {
	return path == "/sse" ||
		path == "/mcp" ||
		strings.HasPrefix(path, "/api/mcp") ||
		strings.HasPrefix(path, "/mcp/") ||
		s.eventPaths[path]
}
