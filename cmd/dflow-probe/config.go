// ABOUTME: Configuration loading for dflow-probe
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// Envelope dialects the probe can speak.
const (
	DialectStandard = "standard"
	DialectClaude   = "claude"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Probe   ProbeConfig   `toml:"probe"`
}

type GatewayConfig struct {
	URL    string `toml:"url"`
	Token  string `toml:"token"`
	APIKey string `toml:"api_key"`
}

type ProbeConfig struct {
	Dialect    string `toml:"dialect"`
	Path       string `toml:"path"`
	EventsPath string `toml:"events_path"`
}

// DefaultConfig targets a local gateway over the standard dialect.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{URL: "http://localhost:8080"},
		Probe: ProbeConfig{
			Dialect:    DialectStandard,
			Path:       "/mcp",
			EventsPath: "/sse",
		},
	}
}

// getConfigPath returns the probe config path.
// Priority: DFLOW_PROBE_CONFIG env var > XDG_CONFIG_HOME/dflow-mcp/probe.toml > ~/.config/dflow-mcp/probe.toml
func getConfigPath() string {
	if envPath := os.Getenv("DFLOW_PROBE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "probe.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "dflow-mcp", "probe.toml")
}

// Load reads config from the given path, expanding environment variables.
// Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns DefaultConfig when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("gateway.url must use http or https scheme")
	}

	switch c.Probe.Dialect {
	case DialectStandard, DialectClaude:
	default:
		return fmt.Errorf("probe.dialect %q must be %q or %q", c.Probe.Dialect, DialectStandard, DialectClaude)
	}

	for name, p := range map[string]string{"probe.path": c.Probe.Path, "probe.events_path": c.Probe.EventsPath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
	}
	return nil
}
