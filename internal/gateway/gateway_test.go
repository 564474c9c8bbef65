// ABOUTME: Tests for the Gateway orchestrator: construction, health endpoints and webhook ingress
// ABOUTME: Runs the real store, registry and dialogue engine against fake Bot API clients

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storefront-gateway/internal/bot"
	"github.com/2389/storefront-gateway/internal/config"
	"github.com/2389/storefront-gateway/internal/telegram"
)

const (
	testAdminToken = "admin-token"
	plovToken      = "111:plov"
	operatorChat   = int64(-100500)
	customerTG     = int64(501)
)

const testTenants = `
[[tenant]]
id = "plov"
name = "Plov House"
bot_token = "111:plov"
operator_chat_id = -100500
timezone = "UTC"
`

// fakeBots hands out one FakeClient per bot token.
type fakeBots struct {
	mu      sync.Mutex
	clients map[string]*telegram.FakeClient
}

func (f *fakeBots) connect(_ context.Context, token string) (telegram.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[token]
	if !ok {
		c = telegram.NewFakeClient()
		f.clients[token] = c
	}
	return c, nil
}

func (f *fakeBots) client(token string) *telegram.FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[token]
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig creates a minimal config backed by files in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tenantsPath := filepath.Join(dir, "tenants.toml")
	require.NoError(t, os.WriteFile(tenantsPath, []byte(testTenants), 0644))

	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:      "127.0.0.1:0",
			PublicBaseURL: "https://shop.example",
		},
		Database: config.DatabaseConfig{Path: filepath.Join(dir, "gateway.db")},
		Auth: config.AuthConfig{
			JWTSecret:     "0123456789abcdef0123456789abcdef",
			AdminToken:    testAdminToken,
			LoginTokenTTL: time.Hour,
		},
		WebApp:    config.WebAppConfig{BaseURL: "https://app.example"},
		Dialogue:  config.DialogueConfig{StateTTL: time.Hour, ResetCooldown: time.Minute},
		State:     config.StateConfig{Backend: config.StateBackendMemory, MaxEntries: 1000},
		Broadcast: config.BroadcastConfig{PollInterval: time.Hour, LeaseTTL: time.Minute, RatePerSecond: 1000},
		Tenants:   config.TenantsConfig{Path: tenantsPath},
		Logging:   config.LoggingConfig{Level: "info", Format: "text"},
	}
}

// newTestGateway builds a gateway; started also brings up bot sessions and the scheduler.
func newTestGateway(t *testing.T, cfg *config.Config, started bool) (*Gateway, *fakeBots) {
	t.Helper()
	bots := &fakeBots{clients: make(map[string]*telegram.FakeClient)}

	gw, err := New(cfg, testLogger(), WithConnector(bots.connect))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})

	if started {
		require.NoError(t, gw.Start(context.Background()))
	}
	return gw, bots
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewayNew(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), false)

	assert.NotNil(t, gw.registry)
	assert.NotNil(t, gw.dialogue)
	assert.NotNil(t, gw.orders)
	assert.NotNil(t, gw.scheduler)

	tenant, err := gw.store.GetTenant(context.Background(), "plov")
	require.NoError(t, err)
	assert.Equal(t, "Plov House", tenant.Name)
	assert.Equal(t, operatorChat, tenant.OperatorChatID)
}

func TestGatewayNew_BadTenantsFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Tenants.Path, []byte("[[tenant]]\nname = \"no id\"\n"), 0644))

	_, err := New(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")
}

func TestHealthEndpoints(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), false)

	rec := doRequest(t, gw.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, gw.Start(context.Background()))
	rec = doRequest(t, gw.Handler(), http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready (1 sessions)", rec.Body.String())
}

func TestStart_RegistersWebhook(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)

	info, ok := gw.registry.Lookup("plov")
	require.True(t, ok)
	assert.Equal(t, bot.ModePush, info.Mode)

	client := bots.client(plovToken)
	require.NotNil(t, client)
	assert.Equal(t, "https://shop.example/api/telegram/webhook/plov", client.WebhookURL)
	assert.Equal(t, bot.WebhookSecret(plovToken), client.WebhookSecret)
}

func TestStart_NoPublicURLPolls(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.PublicBaseURL = ""
	gw, bots := newTestGateway(t, cfg, true)

	info, ok := gw.registry.Lookup("plov")
	require.True(t, ok)
	assert.Equal(t, bot.ModePull, info.Mode)
	assert.Eventually(t, bots.client(plovToken).Polling, time.Second, 10*time.Millisecond)
}

const startUpdate = `{
	"update_id": 7001,
	"message": {
		"message_id": 10,
		"date": 1773489600,
		"from": {"id": 501, "first_name": "Aziza", "language_code": "en"},
		"chat": {"id": 501, "type": "private"},
		"text": "/start",
		"entities": [{"type": "bot_command", "offset": 0, "length": 6}]
	}
}`

func TestWebhook(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)
	secret := map[string]string{SecretTokenHeader: bot.WebhookSecret(plovToken)}
	client := bots.client(plovToken)

	t.Run("bad secret", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/plov", startUpdate,
			map[string]string{SecretTokenHeader: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/nobody", startUpdate, secret)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage body is acknowledged", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/plov", "{not json", secret)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	var replies int
	t.Run("update reaches the dialogue engine", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/plov", startUpdate, secret)
		assert.Equal(t, http.StatusOK, rec.Code)

		gw.registry.Wait()
		replies = len(client.MessagesTo(customerTG))
		assert.Positive(t, replies)
	})

	t.Run("redelivery is processed once", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/plov", startUpdate, secret)
		assert.Equal(t, http.StatusOK, rec.Code)

		gw.registry.Wait()
		assert.Len(t, client.MessagesTo(customerTG), replies)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doRequest(t, gw.Handler(), http.MethodGet, "/api/telegram/webhook/plov", "", secret)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestShutdown_StopsSessions(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, gw.Shutdown(ctx))

	assert.Empty(t, gw.registry.Sessions())

	// detached sessions no longer accept pushes
	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/telegram/webhook/plov", startUpdate,
		map[string]string{SecretTokenHeader: bot.WebhookSecret(plovToken)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, bots.client(plovToken).MessagesTo(customerTG))

	assert.NoError(t, gw.Shutdown(ctx))
}
