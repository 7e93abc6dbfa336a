// ABOUTME: Envelope normalizer that classifies a request body by dialect.
// ABOUTME: Produces one CanonicalRequest from Claude-Desktop RPC or standard JSON-RPC 2.0 bodies.

package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Dialect identifies which envelope shape a caller used.
type Dialect string

const (
	DialectClaude   Dialect = "claude_desktop_rpc"
	DialectStandard Dialect = "standard_jsonrpc"
)

// notificationPrefix marks fire-and-forget methods.
const notificationPrefix = "notifications/"

// claudeArgNames names the positional args of Claude-Desktop methods.
var claudeArgNames = map[string][]string{
	"connectMCPServer": {"server_url"},
}

// CanonicalRequest is the dialect-independent form of an inbound call.
type CanonicalRequest struct {
	ID      json.RawMessage
	Method  string
	Params  map[string]any
	Dialect Dialect
}

// IsNotification reports whether the request expects no response.
func (r CanonicalRequest) IsNotification() bool {
	return strings.HasPrefix(r.Method, notificationPrefix)
}

// Normalize parses body and classifies it. defaultMethod is used when the body
// carries no method of its own (path aliases supply it). The returned *Error is
// a parse failure (-32700), a classification failure (-32600), or a params
// failure (-32602); for the latter two the request id is still populated.
func Normalize(body []byte, defaultMethod string) (CanonicalRequest, *Error) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return CanonicalRequest{}, NewError(CodeParseError, "Parse error", err.Error())
	}
	if dec.More() {
		return CanonicalRequest{}, NewError(CodeParseError, "Parse error", "unexpected data after JSON value")
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return CanonicalRequest{}, invalidFormat(decoded)
	}

	// Raw fields keep the id byte for byte.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return CanonicalRequest{}, NewError(CodeParseError, "Parse error", err.Error())
	}
	id := raw["id"]

	method, _ := obj["method"].(string)
	hasMethod := method != ""
	_, hasType := obj["type"]

	if typ, _ := obj["type"].(string); typ == "rpc" && hasMethod {
		if args, isArray := obj["args"].([]any); isArray {
			return CanonicalRequest{
				ID:      id,
				Method:  method,
				Params:  claudeParams(method, args),
				Dialect: DialectClaude,
			}, nil
		}
	}

	if obj["jsonrpc"] == "2.0" && hasMethod && !hasType {
		params, err := standardParams(obj["params"])
		if err != nil {
			return CanonicalRequest{ID: id}, err
		}
		return CanonicalRequest{ID: id, Method: method, Params: params, Dialect: DialectStandard}, nil
	}

	// Alias paths accept bodies that only carry params.
	if _, present := obj["method"]; !present && !hasType && defaultMethod != "" {
		params, err := standardParams(obj["params"])
		if err != nil {
			return CanonicalRequest{ID: id}, err
		}
		return CanonicalRequest{ID: id, Method: defaultMethod, Params: params, Dialect: DialectStandard}, nil
	}

	// Notifications are accepted whatever the envelope looks like.
	if hasMethod && strings.HasPrefix(method, notificationPrefix) {
		params, _ := obj["params"].(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		return CanonicalRequest{ID: id, Method: method, Params: params, Dialect: DialectStandard}, nil
	}

	return CanonicalRequest{ID: id}, invalidFormat(decoded)
}

func claudeParams(method string, args []any) map[string]any {
	params := map[string]any{"args": args}
	for i, name := range claudeArgNames[method] {
		if i < len(args) {
			params[name] = args[i]
		}
	}
	return params
}

func standardParams(v any) (map[string]any, *Error) {
	switch p := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return p, nil
	default:
		return nil, NewError(CodeInvalidParams, "Invalid params", "params must be an object")
	}
}

func invalidFormat(received any) *Error {
	return NewError(CodeInvalidRequest, "Invalid request format", map[string]any{
		"expected_formats": []string{string(DialectClaude), string(DialectStandard)},
		"received_request": received,
	})
}
