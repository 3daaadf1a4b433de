// ABOUTME: Gateway wiring and HTTP server lifecycle
// ABOUTME: Builds the credential chain, route table, and listeners from config

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/bridge-gateway/internal/auth"
	"github.com/2389/bridge-gateway/internal/config"
	"github.com/2389/bridge-gateway/internal/langgraph"
	"github.com/2389/bridge-gateway/internal/mcp"
	"github.com/2389/bridge-gateway/internal/oauth"
)

// tokenSweepInterval is how often expired issued tokens are purged in the
// background. Expiry is also enforced lazily at use, the sweep just keeps the
// table from growing unbounded.
const tokenSweepInterval = 10 * time.Minute

// Gateway owns the bridge's HTTP server and its wired components.
type Gateway struct {
	config       *config.Config
	tokenStore   auth.TokenStore
	resolver     *auth.Resolver
	upstream     *langgraph.Client
	orchestrator *Orchestrator
	mcpServer    *mcp.Server
	oauthServer  *oauth.Server
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
	logger       *slog.Logger
}

// initTokenStore creates the issued-token store based on config and
// environment. An empty database path keeps tokens in memory only.
func initTokenStore(cfg *config.Config) (auth.TokenStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("BRIDGE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	if dbPath == "" || dbPath == ":memory:" {
		return auth.NewMemoryTokenStore(), nil
	}

	store, err := auth.NewSQLiteTokenStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing token store: %w", err)
	}
	return store, nil
}

// buildResolver assembles the credential chain from config.
func buildResolver(cfg *config.Config, store auth.TokenStore, logger *slog.Logger) (*auth.Resolver, *auth.JWTSigner, error) {
	var signer *auth.JWTSigner
	if cfg.Auth.JWTSecret != "" {
		var err error
		signer, err = auth.NewJWTSigner([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, nil, fmt.Errorf("creating JWT signer: %w", err)
		}
	}

	var introspector *auth.Introspector
	if cfg.Auth.IntrospectURL != "" {
		introspector = auth.NewIntrospector(
			cfg.Auth.IntrospectURL,
			cfg.Auth.IntrospectClientID,
			cfg.Auth.IntrospectClientSecret,
		)
	}

	resolver := auth.NewResolver(
		cfg.Auth.Enabled,
		store,
		cfg.Auth.APIKeySet(),
		signer,
		introspector,
		logger.With("component", "auth"),
	)
	return resolver, signer, nil
}

// New creates a Gateway with all components wired from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	store, err := initTokenStore(cfg)
	if err != nil {
		return nil, err
	}

	resolver, signer, err := buildResolver(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.Enabled {
		logger.Info("authentication enabled",
			"api_keys", len(cfg.Auth.APIKeySet()),
			"clients", len(cfg.Auth.Clients),
			"introspection", cfg.Auth.IntrospectURL != "",
		)
	} else {
		logger.Warn("authentication disabled - all requests accepted")
	}

	upstream := langgraph.NewClient(
		cfg.Upstream.BaseURL,
		&http.Client{Timeout: cfg.Upstream.InvokeTimeout},
		&http.Client{Timeout: cfg.Upstream.StreamTimeout},
		logger,
	)

	gw := &Gateway{
		config:     cfg,
		tokenStore: store,
		resolver:   resolver,
		upstream:   upstream,
		logger:     logger.With("component", "gateway"),
	}
	gw.orchestrator = NewOrchestrator(upstream, cfg.Upstream.AssistantID, logger)

	gw.mcpServer = mcp.NewServer(mcp.Config{
		Runner:           mcpRunner{gw.orchestrator},
		Upstream:         upstream,
		DefaultAssistant: cfg.Upstream.AssistantID,
		HealthAssistant:  cfg.Upstream.HealthAssistantID,
		Logger:           logger.With("component", "mcp"),
	})

	gw.oauthServer = oauth.NewServer(oauth.Config{
		Clients:  cfg.Auth.Clients,
		Signer:   signer,
		Store:    store,
		TokenTTL: cfg.Auth.TokenTTL,
		BaseURL:  cfg.Server.BaseURL,
		Logger:   logger.With("component", "oauth"),
	})

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// buildMux assembles the route table. Health and discovery endpoints are
// public; everything that reaches the upstream sits behind the credential
// chain.
func (g *Gateway) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	protect := auth.Middleware(g.resolver, g.config.Auth.AuthorizeURL, g.logger)

	mux.HandleFunc("/health", g.handleHealth)
	g.oauthServer.RegisterRoutes(mux, protect)

	mux.Handle("/invoke", protect(http.HandlerFunc(g.handleInvoke)))
	mux.Handle("/stream", protect(http.HandlerFunc(g.handleStream)))
	mux.Handle("/agents", protect(http.HandlerFunc(g.handleListAgents)))
	g.mcpServer.RegisterRoutes(mux, protect)

	return mux
}

// mcpRunner adapts the orchestrator to the MCP server's Runner interface.
type mcpRunner struct {
	o *Orchestrator
}

func (r mcpRunner) Invoke(ctx context.Context, p mcp.RunParams, authCtx *auth.Context) mcp.RunOutcome {
	result := r.o.Invoke(ctx, InvokeParams{
		Prompt:         p.Prompt,
		AssistantID:    p.AssistantID,
		ThreadID:       p.ThreadID,
		ConversationID: p.ConversationID,
	}, authCtx)
	return mcp.RunOutcome{
		Text:     result.Text,
		RunID:    result.RunID,
		ThreadID: result.ThreadID,
		IsError:  result.IsError,
	}
}

func (r mcpRunner) Stream(ctx context.Context, p mcp.RunParams, authCtx *auth.Context) mcp.StreamOutcome {
	result := r.o.Stream(ctx, InvokeParams{
		Prompt:         p.Prompt,
		AssistantID:    p.AssistantID,
		ThreadID:       p.ThreadID,
		ConversationID: p.ConversationID,
	}, authCtx)
	return mcp.StreamOutcome{
		Output:  result.Output,
		Chunks:  result.Chunks,
		IsError: result.IsError,
	}
}

// Run starts the gateway and blocks until the context is canceled or a
// server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	go auth.RunSweeper(ctx, g.tokenStore, tokenSweepInterval)

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListener creates a listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
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

// startServer serves HTTP in a goroutine, returning the error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if g.tsnetServer != nil {
		if err := g.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if err := g.tokenStore.Close(); err != nil {
		errs = append(errs, fmt.Errorf("token store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// resolveTailscaleStateDir returns the state directory, using a default
// under the user's home when not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "bridge-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable (get one at https://login.tailscale.com/admin/settings/keys)")
	}
	return authKey, nil
}

// setupTailscaleListener creates a tsnet node and returns its HTTP listener.
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

	return g.createTailscaleHTTPListener(tsCfg)
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

// createTailscaleHTTPListener creates the appropriate listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's
// auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}
