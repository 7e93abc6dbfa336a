// ABOUTME: Tool call audit log persisted to the tool_calls table
// ABOUTME: Implements mcp.AuditRecorder and provides filtered, newest-first listing

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/dflow-mcp/internal/auth"
	"github.com/2389/dflow-mcp/internal/mcp"
)

// tsLayout is fixed width so lexical order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// ToolCallEntry is one recorded tool invocation.
type ToolCallEntry struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	Principal string         `json:"principal,omitempty"` // authenticated caller, empty when auth is off
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToolCallFilter narrows ListToolCalls. Zero values match everything.
type ToolCallFilter struct {
	Tool  string
	Limit int // default 100, max 1000
}

var _ mcp.AuditRecorder = (*SQLiteStore)(nil)

// RecordToolCall appends a tool call to the audit log.
// The caller identity comes from the auth principal on ctx, when present.
func (s *SQLiteStore) RecordToolCall(ctx context.Context, call mcp.ToolCall) error {
	id := call.RequestID
	if id == "" {
		id = uuid.New().String()
	}
	ts := call.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshaling arguments: %w", err)
	}

	var errText *string
	ok := 1
	if call.Err != nil {
		msg := call.Err.Error()
		errText = &msg
		ok = 0
	}

	var principal *string
	if p := auth.FromContext(ctx); p != nil && p.ID != "" {
		principal = &p.ID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (id, tool, arguments_json, ok, error, principal, duration_ms, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, call.Tool, string(argsJSON), ok, errText, principal, call.Duration.Milliseconds(), ts.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}

	s.logger.Debug("recorded tool call", "id", id, "tool", call.Tool, "ok", ok == 1)
	return nil
}

// normalizeAuditLimit applies default and max limits to the query.
func normalizeAuditLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func scanToolCall(scanner interface{ Scan(dest ...any) error }) (ToolCallEntry, error) {
	var e ToolCallEntry
	var argsJSON, tsStr string
	var errText, principal *string
	var ok int
	var durationMS int64

	if err := scanner.Scan(&e.ID, &e.Tool, &argsJSON, &ok, &errText, &principal, &durationMS, &tsStr); err != nil {
		return e, fmt.Errorf("scanning tool call: %w", err)
	}

	e.OK = ok == 1
	if errText != nil {
		e.Error = *errText
	}
	if principal != nil {
		e.Principal = *principal
	}
	e.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	e.Timestamp, err = time.Parse(tsLayout, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(argsJSON), &e.Arguments); err != nil {
		return e, fmt.Errorf("unmarshaling arguments: %w", err)
	}
	return e, nil
}

const toolCallQuery = `
	SELECT id, tool, arguments_json, ok, error, principal, duration_ms, ts
	FROM tool_calls
	WHERE (? = '' OR tool = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListToolCalls returns tool calls matching the filter, newest first.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]ToolCallEntry, error) {
	rows, err := s.db.QueryContext(ctx, toolCallQuery, f.Tool, f.Tool, normalizeAuditLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []ToolCallEntry{}
	for rows.Next() {
		e, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool calls: %w", err)
	}
	return entries, nil
}
