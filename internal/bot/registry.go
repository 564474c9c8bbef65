// ABOUTME: Per-tenant bot session registry with push/pull delivery and safe teardown
// ABOUTME: Dispatches de-duplicated inbound events to the handler on isolated goroutines

package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/storefront-gateway/internal/dedupe"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// ErrNoSession indicates the tenant has no live session
var ErrNoSession = errors.New("no bot session for tenant")

// ErrMissingCredential indicates the tenant has no bot token configured
var ErrMissingCredential = errors.New("tenant has no bot credential")

// ErrSuperseded indicates StopAll ran while the session was connecting
var ErrSuperseded = errors.New("sessions stopped while starting")

// WebhookPath is the route prefix for push delivery; the tenant id follows it
const WebhookPath = "/api/telegram/webhook/"

const (
	startConcurrency = 8
	handlerTimeout   = 2 * time.Minute
)

// Mode is how a session receives updates
type Mode string

const (
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// Connector opens a client for a bot credential
type Connector func(ctx context.Context, token string) (telegram.Client, error)

// DialConnector connects to the public Bot API
func DialConnector(ctx context.Context, token string) (telegram.Client, error) {
	return telegram.Dial(token, "", nil)
}

// Handler processes one inbound event
type Handler interface {
	HandleEvent(ctx context.Context, evt telegram.Event)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, evt telegram.Event)

// HandleEvent implements Handler
func (f HandlerFunc) HandleEvent(ctx context.Context, evt telegram.Event) {
	f(ctx, evt)
}

// TenantSource lists the tenants StartAll brings up
type TenantSource interface {
	ListTenants(ctx context.Context, activeOnly bool) ([]*store.Tenant, error)
}

// Session is one tenant's live connection
type Session struct {
	TenantID  string
	Mode      Mode
	StartedAt time.Time

	client   telegram.Client
	token    string
	secret   string
	cancel   context.CancelFunc
	detached atomic.Bool
}

// SessionInfo is a read-only view of a session
type SessionInfo struct {
	TenantID  string    `json:"tenant_id"`
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"started_at"`
}

// Config holds registry settings
type Config struct {
	// PublicBaseURL enables push delivery when set
	PublicBaseURL string
	DedupeTTL     time.Duration
	DedupeSize    int
}

// Registry coordinates all tenant sessions
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	// bumped by StopAll; a Start from an older generation must not insert
	generation uint64

	// serializes Start/Stop per tenant so at most one connection is live
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	connect Connector
	tenants TenantSource
	handler atomic.Value // Handler
	seen    *dedupe.Cache
	baseURL string
	logger  *slog.Logger

	inflight sync.WaitGroup
}

// NewRegistry creates a registry. Call SetHandler before starting sessions.
func NewRegistry(cfg Config, connect Connector, tenants TenantSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if connect == nil {
		connect = DialConnector
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 10 * time.Minute
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = 10000
	}
	return &Registry{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
		connect:  connect,
		tenants:  tenants,
		seen:     dedupe.New(cfg.DedupeTTL, cfg.DedupeSize),
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:   logger.With("component", "bot-registry"),
	}
}

// SetHandler sets the handler that receives dispatched events
func (r *Registry) SetHandler(h Handler) {
	r.handler.Store(h)
}

// SetPublicBaseURL changes the push delivery base URL for sessions started afterwards
func (r *Registry) SetPublicBaseURL(base string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseURL = strings.TrimRight(base, "/")
}

func (r *Registry) tenantLock(tenantID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	l, ok := r.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[tenantID] = l
	}
	return l
}

// WebhookSecret derives the secret token the platform echoes on every push
func WebhookSecret(token string) string {
	mac := hmac.New(sha256.New, []byte("storefront-webhook"))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookURL returns the push endpoint for a tenant, or "" without a public base URL
func (r *Registry) WebhookURL(tenantID string) string {
	r.mu.RLock()
	base := r.baseURL
	r.mu.RUnlock()

	if base == "" {
		return ""
	}
	return base + WebhookPath + url.PathEscape(tenantID)
}

// Start brings up a session for the tenant, replacing any existing one.
func (r *Registry) Start(ctx context.Context, tenant *store.Tenant) error {
	if tenant.BotToken == "" {
		return ErrMissingCredential
	}

	lock := r.tenantLock(tenant.ID)
	lock.Lock()
	defer lock.Unlock()

	r.stopLocked(tenant.ID)

	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()

	client, err := r.connect(ctx, tenant.BotToken)
	if err != nil {
		return fmt.Errorf("connecting bot for tenant %s: %w", tenant.ID, err)
	}

	sess := &Session{
		TenantID:  tenant.ID,
		StartedAt: time.Now(),
		client:    client,
		token:     tenant.BotToken,
		secret:    WebhookSecret(tenant.BotToken),
	}
	logger := r.logger.With("tenant_id", tenant.ID)

	if hook := r.WebhookURL(tenant.ID); hook != "" {
		if err := client.SetWebhook(ctx, hook, sess.secret); err != nil {
			logger.Warn("webhook registration failed, falling back to polling", "error", err)
		} else {
			sess.Mode = ModePush
		}
	}

	if sess.Mode != ModePush {
		// a leftover webhook makes getUpdates fail
		if err := client.DeleteWebhook(ctx); err != nil {
			logger.Warn("failed to delete webhook before polling", "error", err)
		}
		sess.Mode = ModePull
		pollCtx, cancel := context.WithCancel(context.Background())
		sess.cancel = cancel
		go r.pollLoop(sess, client.Updates(pollCtx))
	}

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		sess.detached.Store(true)
		r.release(sess)
		logger.Info("bot session discarded, registry stopped while starting")
		return ErrSuperseded
	}
	r.sessions[tenant.ID] = sess
	total := len(r.sessions)
	r.mu.Unlock()

	logger.Info("bot session started", "mode", sess.Mode, "total_sessions", total)
	return nil
}

func (r *Registry) pollLoop(sess *Session, events <-chan telegram.Event) {
	for evt := range events {
		evt.TenantID = sess.TenantID
		r.dispatchTo(sess, evt)
	}
}

// Stop tears down the tenant's session if there is one
func (r *Registry) Stop(tenantID string) {
	lock := r.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	r.stopLocked(tenantID)
}

func (r *Registry) stopLocked(tenantID string) {
	r.mu.Lock()
	sess, ok := r.sessions[tenantID]
	if ok {
		delete(r.sessions, tenantID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	sess.detached.Store(true)
	r.release(sess)
}

func (r *Registry) release(sess *Session) {
	if sess.cancel != nil {
		sess.cancel()
	}
	if sess.Mode == ModePull {
		sess.client.StopUpdates()
	}
	r.logger.Info("bot session stopped", "tenant_id", sess.TenantID, "mode", sess.Mode)
}

// StartAll starts a session for every active tenant in parallel. One tenant's
// failure is logged and never prevents the others from starting.
func (r *Registry) StartAll(ctx context.Context) error {
	tenants, err := r.tenants.ListTenants(ctx, true)
	if err != nil {
		return fmt.Errorf("listing tenants: %w", err)
	}

	var started atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(startConcurrency)
	for _, t := range tenants {
		g.Go(func() error {
			if err := r.Start(gctx, t); err != nil {
				r.logger.Error("failed to start bot session", "tenant_id", t.ID, "error", err)
				return nil
			}
			started.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("bot sessions started", "started", started.Load(), "tenants", len(tenants))
	return nil
}

// StopAll detaches every session before releasing any of them
func (r *Registry) StopAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sess.detached.Store(true)
		all = append(all, sess)
	}
	r.sessions = make(map[string]*Session)
	r.generation++
	r.mu.Unlock()

	for _, sess := range all {
		r.release(sess)
	}
}

// Reload stops every session and starts them again from the tenant source
func (r *Registry) Reload(ctx context.Context) error {
	r.StopAll()
	return r.StartAll(ctx)
}

// Dispatch hands an event to the handler on its own goroutine. It reports
// false when the event was dropped.
func (r *Registry) Dispatch(evt telegram.Event) bool {
	r.mu.RLock()
	sess, ok := r.sessions[evt.TenantID]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("dropping event for unknown session", "tenant_id", evt.TenantID)
		return false
	}
	return r.dispatchTo(sess, evt)
}

func (r *Registry) dispatchTo(sess *Session, evt telegram.Event) bool {
	if sess.detached.Load() {
		r.logger.Debug("dropping event for detached session", "tenant_id", evt.TenantID)
		return false
	}
	if evt.UpdateID > 0 && r.seen.Seen(evt.TenantID, evt.UpdateID) {
		r.logger.Debug("dropping duplicate update", "tenant_id", evt.TenantID, "update_id", evt.UpdateID)
		return false
	}

	h, _ := r.handler.Load().(Handler)
	if h == nil {
		r.logger.Warn("no handler set, dropping event", "tenant_id", evt.TenantID)
		return false
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("event handler panicked",
					"tenant_id", evt.TenantID,
					"kind", evt.Kind,
					"panic", p,
					"stack", string(debug.Stack()),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		h.HandleEvent(ctx, evt)
	}()
	return true
}

// Wait blocks until every dispatched handler has returned
func (r *Registry) Wait() {
	r.inflight.Wait()
}

// Close stops all sessions, waits for handlers and releases the dedupe cache
func (r *Registry) Close() {
	r.StopAll()
	r.Wait()
	r.seen.Close()
}

// Client returns the live client for a tenant
func (r *Registry) Client(tenantID string) (telegram.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[tenantID]
	if !ok || sess.detached.Load() {
		return nil, ErrNoSession
	}
	return sess.client, nil
}

// Lookup returns a view of the tenant's session
func (r *Registry) Lookup(tenantID string) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[tenantID]
	if !ok {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// LookupByToken finds the session using a bot credential
func (r *Registry) LookupByToken(token string) (SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.sessions {
		if subtle.ConstantTimeCompare([]byte(sess.token), []byte(token)) == 1 {
			return sess.info(), true
		}
	}
	return SessionInfo{}, false
}

// VerifyWebhook reports whether secret matches the tenant's push session
func (r *Registry) VerifyWebhook(tenantID, secret string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[tenantID]
	if !ok || sess.Mode != ModePush {
		return false
	}
	return hmac.Equal([]byte(sess.secret), []byte(secret))
}

// Sessions returns every live session ordered by tenant id
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

func (s *Session) info() SessionInfo {
	return SessionInfo{TenantID: s.TenantID, Mode: s.Mode, StartedAt: s.StartedAt}
}
