// ABOUTME: Gateway orchestrator that wires the store, bot sessions, dialogue, orders and broadcasts
// ABOUTME: Owns the HTTP server (webhooks, health, admin API) and the optional Tailscale listener

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/storefront-gateway/internal/auth"
	"github.com/2389/storefront-gateway/internal/bot"
	"github.com/2389/storefront-gateway/internal/broadcast"
	"github.com/2389/storefront-gateway/internal/config"
	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/dialogue"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/orders"
	"github.com/2389/storefront-gateway/internal/store"
)

// redisPrefix namespaces every key the gateway writes to Redis.
const redisPrefix = "storefront:"

// Option configures a Gateway.
type Option func(*Gateway)

// WithConnector replaces the Bot API connector, mainly for tests.
func WithConnector(c bot.Connector) Option {
	return func(g *Gateway) { g.connector = c }
}

// Gateway orchestrates the storefront-gateway components.
type Gateway struct {
	config      *config.Config
	store       store.Store
	states      convstate.Store
	cooldowns   convstate.Cooldowns
	registry    *bot.Registry
	orders      *orders.Coordinator
	dialogue    *dialogue.Engine
	scheduler   *broadcast.Scheduler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	connector bot.Connector

	// stopScheduler cancels the scheduler loop started by Run
	stopScheduler context.CancelFunc
	schedulerWG   sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// initStore opens the SQLite store named in the config.
func initStore(cfg *config.Config) (store.Store, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// initStateBackend builds the conversation state store and cooldown limiter.
func initStateBackend(cfg *config.Config) (convstate.Store, convstate.Cooldowns, error) {
	switch cfg.State.Backend {
	case config.StateBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := convstate.DialRedis(ctx, cfg.State.RedisAddr, cfg.State.RedisPassword, cfg.State.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return convstate.NewRedisStore(client, redisPrefix, cfg.Dialogue.StateTTL),
			convstate.NewRedisCooldowns(client, redisPrefix), nil
	default:
		return convstate.NewMemoryStore(cfg.Dialogue.StateTTL, cfg.State.MaxEntries, time.Minute),
			convstate.NewMemoryCooldowns(time.Now), nil
	}
}

// syncTenants loads the tenant catalogue and mirrors it into the store.
func syncTenants(ctx context.Context, cfg *config.Config, s store.Store) (int, error) {
	cat, err := config.LoadTenants(cfg.Tenants.Path)
	if err != nil {
		return 0, err
	}
	if err := s.SyncTenants(ctx, cat.StoreTenants()); err != nil {
		return 0, fmt.Errorf("syncing tenants: %w", err)
	}
	return len(cat.Tenants), nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gw := &Gateway{
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		connector: bot.DialConnector,
	}
	for _, opt := range opts {
		opt(gw)
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	gw.store = s

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := syncTenants(ctx, cfg, s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	gw.logger.Info("tenant catalogue loaded", "tenants", n, "path", cfg.Tenants.Path)

	states, cooldowns, err := initStateBackend(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	gw.states = states
	gw.cooldowns = cooldowns
	gw.logger.Info("conversation state backend ready", "backend", cfg.State.Backend)

	var tokens dialogue.Tokens
	if cfg.Auth.JWTSecret != "" {
		signer, err := auth.NewSigner([]byte(cfg.Auth.JWTSecret), cfg.Auth.LoginTokenTTL)
		if err != nil {
			gw.closeBackends()
			return nil, fmt.Errorf("creating login token signer: %w", err)
		}
		tokens = signer
	} else {
		gw.logger.Warn("auth.jwt_secret not set - menu deep links disabled")
	}

	texts := i18n.New()

	gw.registry = bot.NewRegistry(bot.Config{PublicBaseURL: cfg.Server.PublicBaseURL}, gw.connector, s, logger)
	gw.orders = orders.NewCoordinator(s, gw.registry, states, texts, logger)
	gw.dialogue = dialogue.NewEngine(dialogue.Config{
		WebAppBaseURL:   cfg.WebApp.BaseURL,
		ResetCooldown:   cfg.Dialogue.ResetCooldown,
		SupportUsername: cfg.Dialogue.SupportUsername,
	}, s, states, cooldowns, gw.registry, gw.orders, tokens, texts, logger)
	gw.registry.SetHandler(gw.dialogue)

	gw.scheduler = broadcast.NewScheduler(broadcast.Config{
		PollInterval:  cfg.Broadcast.PollInterval,
		RatePerSecond: cfg.Broadcast.RatePerSecond,
		UseLease:      cfg.Broadcast.UseLease,
		LeaseTTL:      cfg.Broadcast.LeaseTTL,
	}, s, gw.registry, logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// routes builds the HTTP mux.
func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// Platform push delivery, authenticated by the per-tenant secret header
	mux.HandleFunc("POST "+bot.WebhookPath+"{tenantID}", g.handleWebhook)

	admin := auth.AdminTokenMiddleware(g.config.Auth.AdminToken)
	mux.Handle("POST /api/admin/reload", admin(http.HandlerFunc(g.handleReload)))
	mux.Handle("GET /api/admin/sessions", admin(http.HandlerFunc(g.handleSessions)))
	mux.Handle("GET /api/admin/audit", admin(http.HandlerFunc(g.handleAudit)))
	mux.Handle("POST /api/orders/{id}/announce", admin(http.HandlerFunc(g.handleAnnounceOrder)))
	mux.Handle("POST /api/orders/{id}/transition", admin(http.HandlerFunc(g.handleTransitionOrder)))
	mux.Handle("POST /api/broadcasts/send", admin(http.HandlerFunc(g.handleSendBroadcast)))
	mux.Handle("POST /api/broadcasts/history/{id}/retract", admin(http.HandlerFunc(g.handleRetractBroadcast)))

	if g.config.Auth.AdminToken == "" {
		g.logger.Warn("auth.admin_token not set - admin API disabled")
	}
	return mux
}

// Handler exposes the HTTP routes, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Run starts the listeners, bot sessions and scheduler and blocks until the
// context is canceled or the HTTP server fails.
func (g *Gateway) Run(ctx context.Context) error {
	httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", httpListener.Addr().String())
		if err := g.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if err := g.Start(ctx); err != nil {
		_ = g.gracefulShutdown()
		return err
	}

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Start brings up every tenant session and the broadcast scheduler. The
// listener must already be serving so push registration can succeed.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.registry.StartAll(ctx); err != nil {
		return fmt.Errorf("starting bot sessions: %w", err)
	}

	schedCtx, cancel := context.WithCancel(context.Background())
	g.stopScheduler = cancel
	g.schedulerWG.Add(1)
	go func() {
		defer g.schedulerWG.Done()
		g.scheduler.Run(schedCtx)
	}()
	return nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// setupListeners creates the HTTP listener (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
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

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "storefront-gateway", "tailscale"), nil
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

// setupTailscaleListener joins the tailnet and listens on :443 via Funnel
// (public, supplies the webhook base URL) or :80 on the tailnet only.
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
	dnsName := g.logTailscaleStatus(tsCfg.Hostname, status)

	if !tsCfg.Funnel {
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}

	g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
	ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
	}
	if g.config.Server.PublicBaseURL == "" && dnsName != "" {
		base := "https://" + dnsName
		g.registry.SetPublicBaseURL(base)
		g.logger.Info("using funnel address for webhooks", "public_base_url", base)
	}
	return ln, nil
}

// logTailscaleStatus logs the node status and returns its DNS name without the trailing dot.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) string {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = strings.TrimSuffix(status.Self.DNSName, ".")
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
	return dnsName
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeBackends releases the state backend and the store.
func (g *Gateway) closeBackends() []error {
	var errs []error
	if g.states != nil {
		errs = appendCloseError(errs, "state close", g.states.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	return errs
}

// Shutdown stops components in reverse start order: scheduler, bot sessions
// (waiting for in-flight handlers), HTTP server, tailnet, then storage.
// Later calls return the first call's result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	if g.stopScheduler != nil {
		g.stopScheduler()
		g.schedulerWG.Wait()
	}

	g.registry.Close()

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = append(errs, g.closeBackends()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one bot session is live.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	sessions := g.registry.Sessions()
	if len(sessions) == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no bot sessions running"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d sessions)", len(sessions))
}
