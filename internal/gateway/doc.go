// Package gateway assembles and runs the dflow-mcp server.
//
// # Overview
//
// New builds every component from a config.Config:
//
//   - backend.Client for the prediction-market REST API
//   - the tool catalog, built in or loaded once from catalog.source
//   - mcp.Server with the configured path alias tables
//   - the optional auth gate (auth.jwt_secret, auth.api_keys)
//   - the optional SQLite audit store (audit.path or DFLOW_MCP_AUDIT_PATH)
//
// # HTTP Surface
//
//	GET  /health   liveness: {status, service, version, timestamp}
//	GET  /docs     catalog and alias table rendered to HTML
//	*    aliases   MCP routes; see mcp.DefaultAliases
//
// /health and /docs are never gated. OPTIONS preflights pass the gate too.
//
// # Listeners
//
// Run listens on server.http_addr, or on a tsnet node when tailscale.enabled
// (port 80, or 443 through Funnel when tailscale.funnel). Cancelling the
// context shuts the HTTP server down gracefully and closes the audit store.
package gateway
