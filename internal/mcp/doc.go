// Package mcp implements the Model Context Protocol router for the prediction-market API.
//
// # Overview
//
// Callers disagree on envelope shape, transport, and URL path. This package
// accepts all of them and funnels every request through one pipeline:
//
//	HTTP -> Server (transport) -> Normalize -> Dispatcher -> Invoker -> backend
//
// # Dialects
//
// Two request envelopes are recognised, by discriminator fields only:
//
//	{"type": "rpc", "method": "connectMCPServer", "args": ["https://..."], "id": 1}
//	{"jsonrpc": "2.0", "method": "tools/list", "params": {}, "id": 1}
//
// Claude-Desktop bodies may call connectMCPServer, getModels, and health.
// Standard bodies may call initialize, tools/list, tools/call, tools/describe,
// server/info, and health. Any method starting with notifications/ is accepted
// and answered with HTTP 200 and an empty body.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "get_events",
//	    "arguments": {"limit": 5}
//	  },
//	  "id": 7
//	}
//
// The backend JSON is returned pretty-printed inside a single text content block.
// Backend failures become error code -32603 with {tool, arguments} data, still
// delivered with HTTP 200.
//
// # Transport
//
//   - OPTIONS on any path: CORS preflight, body never read
//   - POST on any alias: JSON-RPC request/response
//   - GET on /sse, /mcp, /mcp/..., /api/mcp...: one-shot SSE stream of
//     connected, tools_available, and ready events
//   - GET with Upgrade: websocket: 400, code -32000
//
// Path aliases (see DefaultAliases) only supply a default method for bodies
// that omit one; the body's own method always wins.
//
// # Usage
//
//	server, err := mcp.NewServer(mcp.Config{
//	    Catalog: catalog.Default(),
//	    Backend: client,
//	    Version: version,
//	})
//	server.RegisterRoutes(mux)
package mcp
