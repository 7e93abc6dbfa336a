// ABOUTME: Entry point for the dflow-mcp server binary
// ABOUTME: Subcommands serve the MCP router, check health, mint tokens, and inspect the audit log

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/dflow-mcp/internal/auth"
	"github.com/2389/dflow-mcp/internal/catalog"
	"github.com/2389/dflow-mcp/internal/config"
	"github.com/2389/dflow-mcp/internal/gateway"
	"github.com/2389/dflow-mcp/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _  __ _
  __| |/ _| | _____      __     _ __ ___   ___ _ __
 / _' | |_| |/ _ \ \ /\ / /____| '_ ' _ \ / __| '_ \
| (_| |  _| | (_) \ V  V /_____| | | | | | (__| |_) |
 \__,_|_| |_|\___/ \_/\_/      |_| |_| |_|\___| .__/
                                              |_|
`

// defaultTokenTTL is the lifetime of tokens minted by the token command.
const defaultTokenTTL = 30 * 24 * time.Hour

// getConfigPath returns the path to the gateway config file.
// Priority: DFLOW_MCP_CONFIG env var > XDG_CONFIG_HOME/dflow-mcp/gateway.yaml > ~/.config/dflow-mcp/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DFLOW_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "dflow-mcp", "gateway.yaml")
}

// getDataPath returns the path to the dflow-mcp data directory.
// Priority: XDG_DATA_HOME/dflow-mcp > ~/.local/share/dflow-mcp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "dflow-mcp")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: dflow-mcp <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                         Start the MCP server")
	fmt.Fprintln(w, "  init                          Create a new config file interactively")
	fmt.Fprintln(w, "  health                        Check server liveness")
	fmt.Fprintln(w, "  token --sub NAME [--ttl D]    Mint a bearer token with the configured secret")
	fmt.Fprintln(w, "  audit [--limit N] [--tool T]  Show recent tool calls from the audit log")
	fmt.Fprintln(w, "  tools                         List the tool catalog")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1], os.Args[2:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "serve":
		return runServe(ctx)
	case "init":
		return runInit(bufio.NewReader(os.Stdin), out)
	case "health":
		return runHealth(ctx, out)
	case "token":
		return runToken(args, out)
	case "audit":
		return runAudit(ctx, args, out)
	case "tools":
		return runTools(ctx, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend:   %s\n", cfg.Backend.BaseURL)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.MCP.ToolFallback {
		green.Print("    ▶ ")
		fmt.Print("Tools:     ")
		yellow.Println("fallback routing enabled")
	}
	if !cfg.Auth.Enabled() {
		yellow.Println("    ! auth disabled")
	}

	fmt.Println()

	logger.Info("starting dflow-mcp",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Backend.BaseURL,
		"version", version,
	)

	gw, err := gateway.New(ctx, cfg, logger, version)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context, out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	fmt.Fprintf(out, "healthy (status=%s version=%s)\n", body.Status, body.Version)
	return nil
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	sub := fs.String("sub", "", "token subject (required)")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	subject := strings.TrimSpace(*sub)
	if subject == "" {
		return errors.New("--sub flag is required")
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Fprintln(out, token)
	return nil
}

func runAudit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(out)
	limit := fs.Int("limit", 20, "maximum entries to show")
	tool := fs.String("tool", "", "only show calls to this tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	auditPath := cfg.Audit.ResolvedPath()
	if auditPath == "" {
		return fmt.Errorf("audit.path not configured in %s (or set %s)", configPath, config.AuditPathEnv)
	}

	s, err := store.NewSQLiteStore(auditPath)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer s.Close()

	entries, err := s.ListToolCalls(ctx, store.ToolCallFilter{Tool: *tool, Limit: *limit})
	if err != nil {
		return err
	}
	return printToolCalls(out, entries)
}

func printToolCalls(out io.Writer, entries []store.ToolCallEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no tool calls recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOOL\tCALLER\tRESULT\tDURATION\tARGUMENTS")
	for _, e := range entries {
		result := color.GreenString("ok")
		if !e.OK {
			result = color.RedString("error: ") + e.Error
		}
		args, err := json.Marshal(e.Arguments)
		if err != nil {
			return fmt.Errorf("formatting arguments: %w", err)
		}
		caller := e.Principal
		if caller == "" {
			caller = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Tool, caller, result, e.Duration, args)
	}
	return tw.Flush()
}

func runTools(ctx context.Context, out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(ctx, cfg.Catalog.Source, &http.Client{Timeout: cfg.Backend.Timeout})
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tREQUIRED\tDESCRIPTION")
	for _, tool := range cat.Tools() {
		required := strings.Join(tool.RequiredArguments(), ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", color.CyanString(tool.Name), required, tool.Description)
	}
	return tw.Flush()
}

// generateSecret returns a random base64 secret suitable for auth.jwt_secret.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "dflow-mcp configuration setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	defaultAuditPath := filepath.Join(getDataPath(), "audit.db")

	outputFile := prompt(reader, out, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, out, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	httpAddr := prompt(reader, out, "HTTP address", config.DefaultHTTPAddr)
	publicURL := prompt(reader, out, "Public MCP URL", config.DefaultPublicURL)

	fmt.Fprintln(out, "\n--- Backend Configuration ---")
	baseURL := prompt(reader, out, "Backend base URL", config.DefaultBackendURL)
	timeout := prompt(reader, out, "Backend timeout", config.DefaultBackendTimeout.String())

	fmt.Fprintln(out, "\n--- Security ---")
	enableAuth := isYes(prompt(reader, out, "Require bearer tokens?", "no"))
	auditPath := ""
	if isYes(prompt(reader, out, "Record tool calls to an audit log?", "yes")) {
		auditPath = prompt(reader, out, "Audit database path", defaultAuditPath)
	}

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	tailscaleEnabled := isYes(prompt(reader, out, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, out, "Tailscale hostname", "dflow-mcp")
		tsAuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		tsEphemeral = isYes(prompt(reader, out, "Ephemeral node?", "no"))
		tsFunnel = isYes(prompt(reader, out, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	logLevel := prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, out, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# dflow-mcp configuration\n")
	cfg.WriteString("# Generated by dflow-mcp init\n\n")

	fmt.Fprintf(&cfg, "server:\n  http_addr: %q\n\n", httpAddr)
	fmt.Fprintf(&cfg, "backend:\n  base_url: %q\n  timeout: %q\n  api_key: \"${DFLOW_API_KEY}\"\n\n", baseURL, timeout)
	fmt.Fprintf(&cfg, "mcp:\n  public_url: %q\n  tool_fallback: false\n\n", publicURL)

	if enableAuth {
		secret, err := generateSecret()
		if err != nil {
			return err
		}
		fmt.Fprintf(&cfg, "auth:\n  jwt_secret: %q\n\n", secret)
	}
	if auditPath != "" {
		fmt.Fprintf(&cfg, "audit:\n  path: %q\n\n", auditPath)
	}

	fmt.Fprintf(&cfg, "tailscale:\n  enabled: %t\n", tailscaleEnabled)
	if tailscaleEnabled {
		fmt.Fprintf(&cfg, "  hostname: %q\n", tsHostname)
		if tsAuthKey != "" {
			fmt.Fprintf(&cfg, "  auth_key: %q\n", tsAuthKey)
		}
		fmt.Fprintf(&cfg, "  ephemeral: %t\n  funnel: %t\n", tsEphemeral, tsFunnel)
	}
	cfg.WriteString("\n")

	fmt.Fprintf(&cfg, "logging:\n  level: %q\n  format: %q\n", logLevel, logFormat)

	if _, err := config.Parse([]byte(cfg.String())); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600: the file may hold the JWT secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  dflow-mcp serve")
	if enableAuth {
		fmt.Fprintln(out, "\nTo mint a client token:")
		fmt.Fprintln(out, "  dflow-mcp token --sub claude-desktop")
	}

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
