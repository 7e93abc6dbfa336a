// ABOUTME: Gateway orchestrator that builds the MCP router and serves it over HTTP
// ABOUTME: Wires backend, catalog, auth gate, audit store, liveness, docs, and TCP or tailnet listeners

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/dflow-mcp/internal/auth"
	"github.com/2389/dflow-mcp/internal/backend"
	"github.com/2389/dflow-mcp/internal/catalog"
	"github.com/2389/dflow-mcp/internal/config"
	"github.com/2389/dflow-mcp/internal/mcp"
	"github.com/2389/dflow-mcp/internal/store"
)

// ServiceName is reported by the liveness endpoint.
const ServiceName = "dflow-mcp"

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Gateway orchestrates the dflow-mcp server components.
type Gateway struct {
	config      *config.Config
	version     string
	catalog     *catalog.Catalog
	mcpServer   *mcp.Server
	store       *store.SQLiteStore // nil when auditing is disabled
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	now func() time.Time
}

// initStore opens the audit store when an audit path is configured.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Audit.ResolvedPath()
	if dbPath == "" {
		return nil, nil
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildAuthGate returns the credential middleware, or nil when auth is disabled.
func buildAuthGate(cfg *config.Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Auth.Enabled() {
		logger.Warn("MCP auth disabled - no jwt_secret or api_keys configured")
		return nil
	}

	gateCfg := auth.GateConfig{
		Exempt: config.ReservedPaths,
		Logger: logger.With("component", "auth"),
	}
	if cfg.Auth.JWTSecret != "" {
		gateCfg.Tokens = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}
	if keys := auth.NewAPIKeySet(cfg.Auth.APIKeys); keys.Len() > 0 {
		gateCfg.APIKeys = keys
	}
	logger.Info("MCP auth enabled", "jwt", gateCfg.Tokens != nil, "api_keys", len(cfg.Auth.APIKeys))
	return auth.Gate(gateCfg)
}

// aliasesFromConfig converts the configured alias tables.
func aliasesFromConfig(cfg config.MCPConfig) mcp.Aliases {
	return mcp.Aliases{
		Bootstrap: cfg.BootstrapAliases,
		Events:    cfg.EventsAliases,
		ToolsList: cfg.ToolsListAliases,
		ToolsCall: cfg.ToolsCallAliases,
	}
}

// New creates a new Gateway instance with the given configuration.
// The catalog source, if any, is loaded once here.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Gateway, error) {
	be, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger.With("component", "backend"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	cat, err := catalog.Load(ctx, cfg.Catalog.Source, &http.Client{Timeout: cfg.Backend.Timeout})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	logger.Info("tool catalog loaded", "tools", cat.Len(), "source", cfg.Catalog.Source)

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:  cfg,
		version: version,
		catalog: cat,
		store:   s,
		logger:  logger.With("component", "gateway"),
		now:     time.Now,
	}

	mcpCfg := mcp.Config{
		Catalog:      cat,
		Backend:      be,
		Version:      version,
		PublicURL:    cfg.MCP.PublicURL,
		ToolFallback: cfg.MCP.ToolFallback,
		Aliases:      aliasesFromConfig(cfg.MCP),
		Logger:       logger.With("component", "mcp"),
	}
	if s != nil {
		mcpCfg.Audit = s
	}
	mcpServer, err := mcp.NewServer(mcpCfg)
	if err != nil {
		gw.closeStore()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	gw.mcpServer = mcpServer

	docs, err := renderDocs(cat, mcpCfg.Aliases, version)
	if err != nil {
		gw.closeStore()
		return nil, fmt.Errorf("rendering docs: %w", err)
	}

	mux := http.NewServeMux()

	// Liveness and docs - never gated
	mux.HandleFunc("/health", gw.handleHealth)
	mux.Handle("/docs", docsHandler(docs))

	mcpServer.RegisterRoutes(mux)

	var handler http.Handler = mux
	if gate := buildAuthGate(cfg, logger); gate != nil {
		handler = gate(mux)
	}
	gw.handler = handler

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the fully wired HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" && g.config.Server.HTTPAddr != config.DefaultHTTPAddr {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}

	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		if closeErr := g.closeStore(); closeErr != nil {
			g.logger.Warn("failed to close store", "error", closeErr)
		}
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout,
// since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "dflow-mcp", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener brings up a tsnet node and listens on :80, or :443 through Funnel.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	var ln net.Listener
	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err = g.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		ln, err = g.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (g *Gateway) closeStore() error {
	if g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	return err
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.closeStore())

	return errors.Join(errs...)
}

// healthResponse is the liveness payload served at /health.
type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// handleHealth returns 200 OK with a small JSON body while the process is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	mcp.SetCORSHeaders(w.Header(), false)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Version:   g.version,
		Timestamp: g.now().UTC().Format(time.RFC3339),
	}); err != nil {
		g.logger.Error("failed to encode health response", "error", err)
	}
}
