// ABOUTME: Built-in prediction-market tool definitions and the static server descriptor.
// ABOUTME: Schemas are kept as raw JSON so tools/list echoes them byte for byte.

package catalog

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

// Server identity reported by initialize, server/info, and connectMCPServer.
const (
	ServerName        = "dflow-mcp-server"
	ServerDescription = "Prediction Market Metadata API server for DFlow platform"
)

// ServerInfo is the static protocol descriptor returned by initialize.
type ServerInfo struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      Identity     `json:"serverInfo"`
}

// Capabilities lists the MCP capability flags the server advertises.
type Capabilities struct {
	Tools     ToolsCapability `json:"tools"`
	Prompts   struct{}        `json:"prompts"`
	Resources struct{}        `json:"resources"`
}

// ToolsCapability is the tools entry of Capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Identity names this server.
type Identity struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// NewServerInfo builds the descriptor for the given build version.
func NewServerInfo(version string) ServerInfo {
	return ServerInfo{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		Capabilities: Capabilities{
			Tools: ToolsCapability{ListChanged: false},
		},
		ServerInfo: Identity{
			Name:        ServerName,
			Version:     version,
			Description: ServerDescription,
		},
	}
}

func builtinTools() []Tool {
	return []Tool{
		{
			Name:        "get_events",
			Description: "Get a paginated list of all events with optional filtering and sorting.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":0,"maximum":100,"description":"Maximum number of events to return (0-100)"},"cursor":{"type":"integer","minimum":0,"description":"Pagination cursor for fetching next page"}},"required":[]}`),
		},
		{
			Name:        "get_markets",
			Description: "Get a paginated list of markets with optional filtering.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":0,"maximum":100,"description":"Number of markets to return (0-100)"},"cursor":{"type":"integer","minimum":0,"description":"Pagination cursor for fetching next page"}},"required":[]}`),
		},
		{
			Name:        "get_trades",
			Description: "Get a paginated list of trades across markets with optional filtering.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","minimum":0,"maximum":100,"description":"Number of trades to return (0-100)"},"cursor":{"type":"string","description":"Pagination cursor for fetching next page"}},"required":[]}`),
		},
		{
			Name:        "get_market_by_mint",
			Description: "Get market details by token mint address.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"mint":{"type":"string","description":"Token mint address to look up market"}},"required":["mint"]}`),
		},
		{
			Name:        "get_live_data",
			Description: "Get live data for events and markets.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"event_ticker":{"type":"string","description":"Event ticker for live data"},"market_ticker":{"type":"string","description":"Market ticker for live data"}},"required":[]}`),
		},
	}
}
