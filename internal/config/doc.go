// Package config handles configuration loading for dflow-mcp.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable expansion.
// Every key is optional; missing keys keep the values from Default.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from DFLOW_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/dflow-mcp/gateway.yaml
//  3. ~/.config/dflow-mcp/gateway.yaml
//
// A missing file is not an error for the serve command: the defaults are used.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${DFLOW_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	backend:
//	  base_url: "https://api.llm.dflow.org"
//	  api_key: ""
//	  timeout: "30s"
//
//	catalog:
//	  source: ""            # file path or URL with {"tools": [...]}
//
//	mcp:
//	  tool_fallback: false  # get_x -> GET /api/v1/x for unknown tools
//	  public_url: "https://dflow.opensvm.com/api/mcp"
//	  bootstrap_aliases: ["/mcp/v2/bootstrap", "/sse", "/mcp", "/api/mcp"]
//	  events_aliases: ["/sse", "/mcp/v2/events", "/mcp/events", "/api/mcp/events"]
//	  tools_list_aliases: ["/mcp/v2/tools/list", "/sse/tools", "/mcp/tools", "/api/mcp/tools/list"]
//	  tools_call_aliases: ["/mcp/v2/tools/call", "/sse/call", "/mcp/call", "/api/mcp/tools/call"]
//	  # every alias starts with / and may not be /health or /docs
//
//	auth:
//	  jwt_secret: ""
//	  api_keys: []
//
//	audit:
//	  path: ""              # SQLite file; empty disables the audit log (DFLOW_MCP_AUDIT_PATH overrides)
//
//	tailscale:
//	  enabled: false
//	  hostname: "dflow-mcp"
//
//	logging:
//	  level: "info"         # debug, info, warn, error
//	  format: "text"        # text (colorized) or json
package config
