// ABOUTME: JSON-RPC 2.0 wire types, error codes, and the HTTP response renderer.
// ABOUTME: Every JSON reply leaves through writeResponse so CORS and content type stay uniform.

package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC error codes. The standard set comes from mcp-go.
const (
	CodeParseError          = mcpgo.PARSE_ERROR
	CodeInvalidRequest      = mcpgo.INVALID_REQUEST
	CodeMethodNotFound      = mcpgo.METHOD_NOT_FOUND
	CodeInvalidParams       = mcpgo.INVALID_PARAMS
	CodeInternalError       = mcpgo.INTERNAL_ERROR
	CodeTransportNotAllowed = -32000
)

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. It doubles as a Go error so failures
// can travel through ordinary error returns until they are rendered.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError builds an Error with optional diagnostic data.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Success wraps result in a response echoing id.
func Success(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: mcpgo.JSONRPC_VERSION, ID: id, Result: result}
}

// Failure wraps err in a response echoing id.
func Failure(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: mcpgo.JSONRPC_VERSION, ID: id, Error: err}
}

// Header values shared by preflight and regular responses.
const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, x-api-key"
	corsSSEHeaders   = corsAllowHeaders + ", Last-Event-ID"
	corsMaxAge       = "86400"
)

// SetCORSHeaders applies the CORS headers every response carries.
// sse adds Last-Event-ID to the allowed headers.
func SetCORSHeaders(h http.Header, sse bool) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	if sse {
		h.Set("Access-Control-Allow-Headers", corsSSEHeaders)
	} else {
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	}
}

// WriteResponse renders resp as JSON with the given HTTP status.
func WriteResponse(w http.ResponseWriter, logger *slog.Logger, status int, sse bool, resp *Response) {
	SetCORSHeaders(w.Header(), sse)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}

// WriteError renders a failure with a null id.
func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, sse bool, err *Error) {
	WriteResponse(w, logger, status, sse, Failure(nil, err))
}
