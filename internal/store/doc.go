// Package store persists the tool call audit log in SQLite.
//
// Every tools/call handled by the MCP server is appended to the tool_calls
// table when audit.path (or DFLOW_MCP_AUDIT_PATH) is set. Rows carry the tool
// name, its arguments as JSON, whether the backend call succeeded, the error
// text on failure, the authenticated caller, and the call duration.
// ListToolCalls backs the `dflow-mcp audit` command.
//
// The database is opened with the pure Go modernc.org/sqlite driver in WAL
// mode with a busy timeout, through a single pooled connection.
package store
