// ABOUTME: Server-Sent Events framing and the one-shot connected/tools_available/ready stream.
// ABOUTME: The stream is rendered into one buffer and written once; no connection is held open.

package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/2389/dflow-mcp/internal/catalog"
)

// Event is one SSE frame.
type Event struct {
	ID   string
	Type string
	Data any
}

// EncodeEvents frames events as id/event/data lines, each frame ending in a blank line.
func EncodeEvents(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range events {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return nil, fmt.Errorf("encoding %s event: %w", ev.Type, err)
		}
		if ev.ID != "" {
			fmt.Fprintf(&buf, "id: %s\n", ev.ID)
		}
		fmt.Fprintf(&buf, "event: %s\ndata: %s\n\n", ev.Type, data)
	}
	return buf.Bytes(), nil
}

// bootstrapEvents builds the fixed event sequence for a stream opened at endpoint.
func (s *Server) bootstrapEvents(endpoint string) []Event {
	streamID := "sse-" + uuid.New().String()
	info := catalog.NewServerInfo(s.version)

	return []Event{
		{
			ID:   streamID + "-1",
			Type: "connected",
			Data: map[string]any{
				"status":    "connected",
				"server":    info.ServerInfo.Name,
				"endpoint":  endpoint,
				"timestamp": s.dispatcher.timestamp(),
			},
		},
		{
			ID:   streamID + "-2",
			Type: "tools_available",
			Data: map[string]any{
				"tools":     s.catalog.Tools(),
				"count":     s.catalog.Len(),
				"endpoints": s.aliases.Events,
			},
		},
		{
			ID:   streamID + "-3",
			Type: "ready",
			Data: map[string]any{
				"status":       "ready",
				"capabilities": info.Capabilities,
				"transport":    "sse",
			},
		},
	}
}

// serveEvents writes the bootstrap stream as a single buffered response.
func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	events := s.bootstrapEvents(r.URL.Path)
	body, err := EncodeEvents(events)
	if err != nil {
		s.logger.Error("failed to encode SSE stream", "error", err)
		WriteError(w, s.logger, http.StatusInternalServerError, true, NewError(CodeInternalError, "Internal error", nil))
		return
	}

	SetCORSHeaders(w.Header(), true)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		s.logger.Debug("SSE client went away", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	s.logger.Debug("SSE stream sent", "path", r.URL.Path, "events", len(events))
}
