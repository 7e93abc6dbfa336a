// ABOUTME: Minimal MCP-over-HTTP client used by dflow-probe
// ABOUTME: Builds standard JSON-RPC or Claude Desktop RPC envelopes and reads SSE bootstrap streams

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/2389/dflow-mcp/internal/mcp"
)

// maxReplyBytes caps how much of a gateway reply the probe reads.
const maxReplyBytes = 8 << 20

// rpcReply is a decoded JSON-RPC response with the result left raw.
type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *mcp.Error      `json:"error"`
}

// sseFrame is one parsed server-sent event.
type sseFrame struct {
	ID    string
	Event string
	Data  string
}

type probeClient struct {
	cfg    *Config
	http   *http.Client
	nextID atomic.Int64
}

func newProbeClient(cfg *Config, timeout time.Duration) *probeClient {
	return &probeClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *probeClient) endpoint(path string) string {
	return strings.TrimSuffix(c.cfg.Gateway.URL, "/") + path
}

func (c *probeClient) setAuth(req *http.Request) {
	if c.cfg.Gateway.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Gateway.Token)
	}
	if c.cfg.Gateway.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.Gateway.APIKey)
	}
}

// envelope builds a request body in the given dialect.
// Claude envelopes carry params as a positional args array.
func (c *probeClient) envelope(dialect, method string, params map[string]any, args []any) map[string]any {
	id := c.nextID.Add(1)
	if dialect == DialectClaude {
		if args == nil {
			args = []any{}
		}
		return map[string]any{"type": "rpc", "id": id, "method": method, "args": args}
	}

	body := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		body["params"] = params
	}
	return body
}

// call posts one envelope and decodes the JSON-RPC reply.
// The returned status is the HTTP status code.
func (c *probeClient) call(ctx context.Context, body map[string]any) (*rpcReply, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.cfg.Probe.Path), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, resp.StatusCode, nil
	}

	var reply rpcReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &reply, resp.StatusCode, nil
}

// events opens the SSE alias and returns the frames the gateway sent.
func (c *probeClient) events(ctx context.Context) ([]sseFrame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.cfg.Probe.EventsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return parseEvents(string(data)), nil
}

// parseEvents splits an event stream into frames. Multi-line data fields are joined with newlines.
func parseEvents(stream string) []sseFrame {
	var frames []sseFrame
	stream = strings.ReplaceAll(stream, "\r\n", "\n")
	for _, block := range strings.Split(stream, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var f sseFrame
		var data []string
		for _, line := range strings.Split(block, "\n") {
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "id":
				f.ID = value
			case "event":
				f.Event = value
			case "data":
				data = append(data, value)
			}
		}
		f.Data = strings.Join(data, "\n")
		frames = append(frames, f)
	}
	return frames
}
