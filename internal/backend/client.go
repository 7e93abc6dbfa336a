// ABOUTME: HTTP client for the prediction-market REST API behind the MCP tools
// ABOUTME: Serializes GET params as query strings, POST params as JSON, and surfaces non-2xx as HTTPError

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a backend reply is read into memory.
const maxResponseBytes = 16 << 20

// ErrInvalidResponse indicates the backend answered 2xx with a body that is not JSON.
var ErrInvalidResponse = errors.New("backend returned invalid JSON")

// HTTPError is returned when the backend answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Requester is the contract the tool handler depends on.
type Requester interface {
	Request(ctx context.Context, method, path string, params map[string]any) (json.RawMessage, error)
}

// Config holds configuration for the backend client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend REST API.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a backend client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
	}, nil
}

// Request performs one backend call and returns the raw JSON reply.
// GET params become query parameters; POST params become the JSON body.
func (c *Client) Request(ctx context.Context, method, path string, params map[string]any) (json.RawMessage, error) {
	target, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	var body io.Reader
	switch method {
	case http.MethodGet:
		if len(params) > 0 {
			q := target.Query()
			for key, value := range params {
				q.Add(key, QueryValue(value))
			}
			target.RawQuery = q.Encode()
		}
	case http.MethodPost:
		if params != nil {
			payload, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("encoding request body: %w", err)
			}
			body = bytes.NewReader(payload)
		}
	default:
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}

	c.logger.Debug("backend call",
		"method", method,
		"path", target.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if !json.Valid(data) {
		return nil, ErrInvalidResponse
	}
	return json.RawMessage(data), nil
}

// QueryValue renders a decoded JSON value the way a JavaScript String() call would:
// strings verbatim, integral numbers without a fraction, arrays comma-joined, objects as JSON.
func QueryValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = QueryValue(item)
		}
		return strings.Join(parts, ",")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
