// ABOUTME: Gateway orchestrator that wires HubSpot, the MCP transport and the HTTP server
// ABOUTME: Manages listeners (TCP or Tailscale), the session reaper and graceful shutdown

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
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/Muhammad525444/hubspot-mcp-server/internal/cache"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/config"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/hubspot"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/mcp"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/metrics"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/store"
	"github.com/Muhammad525444/hubspot-mcp-server/internal/tools"
)

// Gateway owns every hubspot-mcp server component.
type Gateway struct {
	config      *config.Config
	logger      *slog.Logger
	hubspot     *hubspot.Client
	cache       *cache.Cache     // nil when list caching is disabled
	metrics     *metrics.Metrics // nil when metrics are disabled
	store       store.Store      // nil when auditing is disabled
	registry    *mcp.Registry
	factory     tools.Factory
	mcpHandler  http.Handler
	engine      *gin.Engine
	httpServer  *http.Server
	tsnetServer *tsnet.Server

	// streamsCtx is canceled when shutdown begins and ends every open GET stream
	streamsCtx context.Context
	endStreams context.CancelFunc

	// mcpEndpoint is the URL clients use, shown on the landing page
	mcpEndpoint string
	startedAt   time.Time
}

// New builds a Gateway from a validated config.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:    cfg,
		logger:    logger,
		startedAt: time.Now(),
	}

	if cfg.Metrics.Enabled {
		gw.metrics = metrics.New()
	}

	if cfg.Audit.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		gw.store = s
	}

	if err := gw.initHubSpot(); err != nil {
		gw.closeComponents()
		return nil, err
	}

	var registryOpts []mcp.RegistryOption
	if gw.metrics != nil {
		registryOpts = append(registryOpts, mcp.WithCountObserver(gw.metrics.SetActiveSessions))
	}
	gw.registry = mcp.NewRegistry(registryOpts...)

	gw.factory = tools.NewFactory(cfg.MCP.ServerName, cfg.MCP.ServerVersion, tools.Deps{
		Backend:      gw.hubspot,
		Logger:       logger,
		Recorders:    gw.recorders(),
		Instructions: cfg.MCP.Instructions,
	})

	handler, err := gw.buildTransport()
	if err != nil {
		gw.closeComponents()
		return nil, err
	}
	gw.mcpHandler = handler
	gw.mcpEndpoint = determineMCPEndpoint(cfg)

	gw.streamsCtx, gw.endStreams = context.WithCancel(context.Background())
	gw.engine = gw.newEngine()
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// initHubSpot creates the list cache and the HubSpot client.
func (g *Gateway) initHubSpot() error {
	hs := g.config.HubSpot

	clientCfg := hubspot.Config{
		BaseURL:   hs.BaseURL,
		Token:     hs.AccessToken,
		Timeout:   hs.Timeout,
		RateLimit: hs.RateLimit,
		Burst:     hs.RateBurst,
	}
	if hs.ListCacheTTL > 0 {
		g.cache = cache.New(hs.ListCacheTTL, hs.ListCacheMaxEntries)
		clientCfg.Cache = g.cache
	}
	if g.metrics != nil {
		clientCfg.Observer = g.metrics
	}

	client, err := hubspot.New(clientCfg)
	if err != nil {
		return fmt.Errorf("creating HubSpot client: %w", err)
	}
	g.hubspot = client
	return nil
}

// recorders lists the tool call sinks that are enabled.
func (g *Gateway) recorders() []tools.Recorder {
	var recs []tools.Recorder
	if g.metrics != nil {
		recs = append(recs, g.metrics)
	}
	if g.store != nil {
		recs = append(recs, &auditRecorder{store: g.store, logger: g.logger.With("component", "audit")})
	}
	return recs
}

// buildTransport creates the MCP handler for the configured transport mode.
func (g *Gateway) buildTransport() (http.Handler, error) {
	m := g.config.MCP
	logger := g.logger.With("component", "mcp", "transport", m.Transport)

	switch m.Transport {
	case config.TransportSessions:
		h, err := mcp.NewHandler(mcp.Config{
			Factory:           g.factory,
			Registry:          g.registry,
			Logger:            logger,
			MaxBodyBytes:      m.MaxBodyBytes,
			HeartbeatInterval: m.HeartbeatInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP handler: %w", err)
		}
		return h, nil
	case config.TransportSDK:
		return http.MaxBytesHandler(mcp.NewSDKHandler(mcp.SDKConfig{
			Server:            g.factory(),
			Registry:          g.registry,
			Path:              m.Path,
			HeartbeatInterval: m.HeartbeatInterval,
			Logger:            logger,
		}), m.MaxBodyBytes), nil
	case config.TransportStateless:
		return http.MaxBytesHandler(mcp.NewSDKHandler(mcp.SDKConfig{
			Server: g.factory(),
			Path:   m.Path,
			Logger: logger,
		}), m.MaxBodyBytes), nil
	default:
		return nil, fmt.Errorf("unknown MCP transport %q", m.Transport)
	}
}

// determineMCPEndpoint resolves the MCP URL advertised to clients.
func determineMCPEndpoint(cfg *config.Config) string {
	path := cfg.MCP.Path
	if cfg.Server.BaseURL != "" {
		return strings.TrimRight(cfg.Server.BaseURL, "/") + path
	}
	if cfg.Tailscale.Enabled {
		scheme := "http://"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https://"
		}
		return scheme + cfg.Tailscale.Hostname + path
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// MCPEndpoint returns the URL clients should use for the MCP endpoint.
func (g *Gateway) MCPEndpoint() string {
	return g.mcpEndpoint
}

// setupTCPListener creates the standard TCP listener.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"transport", g.config.MCP.Transport,
	)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run serves until the context is canceled or the server fails, then shuts down.
// Returns nil on graceful shutdown, or the server error.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	if g.config.MCP.Transport != config.TransportStateless {
		go g.registry.RunReaper(reaperCtx, reapInterval(g.config.MCP.SessionIdleTimeout), g.config.MCP.SessionIdleTimeout, func(ids []string) {
			g.logger.Info("reaped idle MCP sessions", "count", len(ids))
		})
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}
	stopReaper()

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// reapInterval checks for idle sessions several times per timeout, at most once a minute.
func reapInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	switch {
	case interval <= 0:
		return time.Minute
	case interval < time.Second:
		return time.Second
	case interval > time.Minute:
		return time.Minute
	}
	return interval
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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
	return filepath.Join(homeDir, ".local", "share", "hubspot-mcp", "tailscale"), nil
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

// setupTailscaleListener joins the tailnet and returns the HTTP listener.
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
		Logf: func(format string, args ...any) {
			g.logger.Debug(fmt.Sprintf(format, args...), "component", "tsnet")
		},
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	g.updateMCPEndpointFromStatus(status)

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

// updateMCPEndpointFromStatus switches the advertised endpoint to the tailnet DNS name.
func (g *Gateway) updateMCPEndpointFromStatus(status *ipnstate.Status) {
	if g.config.Server.BaseURL != "" || status.Self == nil || status.Self.DNSName == "" {
		return
	}
	scheme := "http://"
	if g.config.Tailscale.HTTPS || g.config.Tailscale.Funnel {
		scheme = "https://"
	}
	newEndpoint := scheme + strings.TrimSuffix(status.Self.DNSName, ".") + g.config.MCP.Path
	if newEndpoint != g.mcpEndpoint {
		g.logger.Info("updated MCP endpoint to use Tailscale DNS name", "old", g.mcpEndpoint, "new", newEndpoint)
		g.mcpEndpoint = newEndpoint
	}
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
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

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
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

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases the cache and the store. Both may be nil.
func (g *Gateway) closeComponents() []error {
	var errs []error
	if g.cache != nil {
		g.cache.Close()
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	return errs
}

// Shutdown stops the HTTP server, ends every MCP session and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// http.Server.Shutdown waits for active requests without canceling them,
	// so open SSE streams are ended here before it drains
	g.endStreams()
	g.registry.CloseAll(ctx)

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = appendCloseError(errs, "HTTP shutdown", err)
		_ = g.httpServer.Close()
	}

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	errs = append(errs, g.closeComponents()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
