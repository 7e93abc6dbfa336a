// ABOUTME: Configuration loading and parsing for dflow-mcp
// ABOUTME: Supports YAML files with environment variable expansion, defaults, and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied before the YAML file is decoded.
const (
	DefaultHTTPAddr       = "localhost:8080"
	DefaultBackendURL     = "https://api.llm.dflow.org"
	DefaultBackendTimeout = 30 * time.Second
	DefaultPublicURL      = "https://dflow.opensvm.com/api/mcp"
)

// ReservedPaths are served by the gateway itself and cannot be MCP aliases.
var ReservedPaths = []string{"/health", "/docs"}

// Config represents the complete dflow-mcp configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Backend   BackendConfig   `yaml:"backend"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	MCP       MCPConfig       `yaml:"mcp"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// BackendConfig describes the prediction-market REST API the tools proxy to.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// CatalogConfig points at an optional external tool catalog.
// Source may be a local .json/.yaml file or an http(s) URL. Empty means the built-in catalog.
type CatalogConfig struct {
	Source string `yaml:"source"`
}

// MCPConfig holds router behaviour and the static path alias tables.
type MCPConfig struct {
	// ToolFallback resolves unknown tool names "get_x" to GET /api/v1/x instead of failing.
	ToolFallback bool `yaml:"tool_fallback"`

	// PublicURL is reported as server_url in connectMCPServer replies when the client sends none.
	PublicURL string `yaml:"public_url"`

	BootstrapAliases []string `yaml:"bootstrap_aliases"`
	EventsAliases    []string `yaml:"events_aliases"`
	ToolsListAliases []string `yaml:"tools_list_aliases"`
	ToolsCallAliases []string `yaml:"tools_call_aliases"`
}

// AuthConfig holds authentication configuration.
// Auth is disabled when both fields are empty.
type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	APIKeys   []string `yaml:"api_keys"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" || len(a.APIKeys) > 0
}

// AuditPathEnv overrides audit.path when set.
const AuditPathEnv = "DFLOW_MCP_AUDIT_PATH"

// AuditConfig holds the tool-call audit log location. Empty disables auditing.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// ResolvedPath returns the audit database path, preferring AuditPathEnv over the file setting.
func (a AuditConfig) ResolvedPath() string {
	if envPath := os.Getenv(AuditPathEnv); envPath != "" {
		return envPath
	}
	return a.Path
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{HTTPAddr: DefaultHTTPAddr},
		Backend: BackendConfig{
			BaseURL: DefaultBackendURL,
			Timeout: DefaultBackendTimeout,
		},
		MCP: MCPConfig{
			PublicURL:        DefaultPublicURL,
			BootstrapAliases: []string{"/mcp/v2/bootstrap", "/sse", "/mcp", "/api/mcp"},
			EventsAliases:    []string{"/sse", "/mcp/v2/events", "/mcp/events", "/api/mcp/events"},
			ToolsListAliases: []string{"/mcp/v2/tools/list", "/sse/tools", "/mcp/tools", "/api/mcp/tools/list"},
			ToolsCallAliases: []string{"/mcp/v2/tools/call", "/sse/call", "/mcp/call", "/api/mcp/tools/call"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes raw YAML bytes on top of the defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https scheme")
	}

	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	for _, group := range [][]string{c.MCP.BootstrapAliases, c.MCP.EventsAliases, c.MCP.ToolsListAliases, c.MCP.ToolsCallAliases} {
		for _, alias := range group {
			if !strings.HasPrefix(alias, "/") {
				return fmt.Errorf("mcp alias %q must start with /", alias)
			}
			if slices.Contains(ReservedPaths, alias) {
				return fmt.Errorf("mcp alias %q collides with a built-in endpoint", alias)
			}
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Backend.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
		cfg.Backend.Timeout = d
	}
	return nil
}
