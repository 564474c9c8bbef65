// ABOUTME: Tests for the bot session registry lifecycle and event dispatch
// ABOUTME: Uses recording fake clients instead of the real Bot API

package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

type fakeTenants struct {
	tenants []*store.Tenant
	err     error
}

func (f *fakeTenants) ListTenants(ctx context.Context, activeOnly bool) ([]*store.Tenant, error) {
	return f.tenants, f.err
}

// fakeConnector hands out a fresh FakeClient per connect and remembers them
type fakeConnector struct {
	mu         sync.Mutex
	clients    map[string][]*telegram.FakeClient
	failTokens map[string]error
	webhookErr error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{clients: make(map[string][]*telegram.FakeClient), failTokens: make(map[string]error)}
}

func (f *fakeConnector) connect(ctx context.Context, token string) (telegram.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failTokens[token]; err != nil {
		return nil, err
	}
	c := telegram.NewFakeClient()
	c.WebhookErr = f.webhookErr
	f.clients[token] = append(f.clients[token], c)
	return c, nil
}

func (f *fakeConnector) latest(token string) *telegram.FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs := f.clients[token]
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

type recordingHandler struct {
	mu     sync.Mutex
	events []telegram.Event
	got    chan telegram.Event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{got: make(chan telegram.Event, 16)}
}

func (h *recordingHandler) HandleEvent(ctx context.Context, evt telegram.Event) {
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
	h.got <- evt
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func tenant(id string) *store.Tenant {
	return &store.Tenant{ID: id, Name: id, BotToken: "token-" + id, Active: true}
}

func newTestRegistry(t *testing.T, baseURL string, conn *fakeConnector, tenants ...*store.Tenant) (*Registry, *recordingHandler) {
	t.Helper()
	r := NewRegistry(Config{PublicBaseURL: baseURL}, conn.connect, &fakeTenants{tenants: tenants}, nil)
	h := newRecordingHandler()
	r.SetHandler(h)
	t.Cleanup(r.Close)
	return r, h
}

func TestStart_PushWhenPublicURL(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "https://shop.example/", conn)

	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	info, ok := r.Lookup("pizza")
	require.True(t, ok)
	assert.Equal(t, ModePush, info.Mode)

	c := conn.latest("token-pizza")
	assert.Equal(t, "https://shop.example/api/telegram/webhook/pizza", c.WebhookURL)
	assert.Equal(t, WebhookSecret("token-pizza"), c.WebhookSecret)
	assert.False(t, c.Polling())

	assert.True(t, r.VerifyWebhook("pizza", WebhookSecret("token-pizza")))
	assert.False(t, r.VerifyWebhook("pizza", "wrong"))
	assert.False(t, r.VerifyWebhook("sushi", WebhookSecret("token-pizza")))
}

func TestStart_FallsBackToPullWhenWebhookFails(t *testing.T) {
	conn := newFakeConnector()
	conn.webhookErr = errors.New("bad certificate")
	r, _ := newTestRegistry(t, "https://shop.example", conn)

	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	info, ok := r.Lookup("pizza")
	require.True(t, ok)
	assert.Equal(t, ModePull, info.Mode)
	assert.True(t, conn.latest("token-pizza").Polling())
	assert.False(t, r.VerifyWebhook("pizza", WebhookSecret("token-pizza")), "pull sessions accept no pushes")
}

func TestStart_PullWithoutPublicURL(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "", conn)

	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	info, _ := r.Lookup("pizza")
	assert.Equal(t, ModePull, info.Mode)
	assert.Empty(t, r.WebhookURL("pizza"))
}

func TestStart_ReplacesExistingSession(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "", conn)
	ctx := context.Background()

	require.NoError(t, r.Start(ctx, tenant("pizza")))
	first := conn.latest("token-pizza")
	require.NoError(t, r.Start(ctx, tenant("pizza")))
	second := conn.latest("token-pizza")

	assert.NotSame(t, first, second)
	assert.False(t, first.Polling(), "old connection released")
	assert.True(t, second.Polling())
	assert.Len(t, r.Sessions(), 1)
}

func TestStart_MissingCredential(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "", conn)

	err := r.Start(context.Background(), &store.Tenant{ID: "pizza"})
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = r.Client("pizza")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStartAll_IsolatesFailures(t *testing.T) {
	conn := newFakeConnector()
	conn.failTokens["token-broken"] = errors.New("unauthorized")
	r, _ := newTestRegistry(t, "", conn, tenant("pizza"), tenant("broken"), tenant("sushi"), &store.Tenant{ID: "empty"})

	require.NoError(t, r.StartAll(context.Background()))

	sessions := r.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "pizza", sessions[0].TenantID)
	assert.Equal(t, "sushi", sessions[1].TenantID)
}

func TestStartAll_ListError(t *testing.T) {
	conn := newFakeConnector()
	r := NewRegistry(Config{}, conn.connect, &fakeTenants{err: errors.New("db down")}, nil)
	defer r.Close()

	assert.Error(t, r.StartAll(context.Background()))
}

func TestReload_RestartsSessions(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "", conn, tenant("pizza"))
	ctx := context.Background()

	require.NoError(t, r.StartAll(ctx))
	first := conn.latest("token-pizza")
	require.NoError(t, r.Reload(ctx))

	assert.False(t, first.Polling())
	assert.NotSame(t, first, conn.latest("token-pizza"))
	assert.Len(t, r.Sessions(), 1)
}

func TestDispatch_DeliversAndDeduplicates(t *testing.T) {
	conn := newFakeConnector()
	r, h := newTestRegistry(t, "https://shop.example", conn)
	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	evt := telegram.Event{TenantID: "pizza", UpdateID: 41, Kind: telegram.KindText, Text: "hi"}
	assert.True(t, r.Dispatch(evt))
	assert.False(t, r.Dispatch(evt), "redelivery dropped")

	select {
	case got := <-h.got:
		assert.Equal(t, "hi", got.Text)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
	r.Wait()
	assert.Equal(t, 1, h.count())
}

func TestDispatch_SameUpdateIDDifferentTenants(t *testing.T) {
	conn := newFakeConnector()
	r, h := newTestRegistry(t, "https://shop.example", conn)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx, tenant("pizza")))
	require.NoError(t, r.Start(ctx, tenant("sushi")))

	assert.True(t, r.Dispatch(telegram.Event{TenantID: "pizza", UpdateID: 1}))
	assert.True(t, r.Dispatch(telegram.Event{TenantID: "sushi", UpdateID: 1}))
	r.Wait()
	assert.Equal(t, 2, h.count())
}

func TestDispatch_DroppedAfterStopAll(t *testing.T) {
	conn := newFakeConnector()
	r, h := newTestRegistry(t, "https://shop.example", conn)
	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	r.StopAll()
	assert.False(t, r.Dispatch(telegram.Event{TenantID: "pizza", UpdateID: 5}))
	r.Wait()
	assert.Equal(t, 0, h.count())
	assert.Empty(t, r.Sessions())
}

func TestStart_StopAllDuringConnect(t *testing.T) {
	conn := newFakeConnector()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	connect := func(ctx context.Context, token string) (telegram.Client, error) {
		if token == "token-pizza" {
			close(entered)
			<-unblock
		}
		return conn.connect(ctx, token)
	}
	r := NewRegistry(Config{}, connect, &fakeTenants{}, nil)
	r.SetHandler(newRecordingHandler())
	t.Cleanup(r.Close)

	errc := make(chan error, 1)
	go func() { errc <- r.Start(context.Background(), tenant("pizza")) }()

	<-entered
	r.StopAll()
	close(unblock)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	assert.Empty(t, r.Sessions())
	c := conn.latest("token-pizza")
	require.NotNil(t, c)
	assert.False(t, c.Polling())

	// later starts are unaffected
	require.NoError(t, r.Start(context.Background(), tenant("sushi")))
	assert.Len(t, r.Sessions(), 1)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	conn := newFakeConnector()
	r := NewRegistry(Config{PublicBaseURL: "https://shop.example"}, conn.connect, &fakeTenants{}, nil)
	defer r.Close()

	done := make(chan struct{})
	r.SetHandler(HandlerFunc(func(ctx context.Context, evt telegram.Event) {
		if evt.UpdateID == 1 {
			panic("boom")
		}
		close(done)
	}))
	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	assert.True(t, r.Dispatch(telegram.Event{TenantID: "pizza", UpdateID: 1}))
	assert.True(t, r.Dispatch(telegram.Event{TenantID: "pizza", UpdateID: 2}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second event not handled after panic")
	}
	r.Wait()
}

func TestPollLoop_StampsTenant(t *testing.T) {
	conn := newFakeConnector()
	r, h := newTestRegistry(t, "", conn)
	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	conn.latest("token-pizza").Push(telegram.Event{UpdateID: 9, Kind: telegram.KindCommand, Command: "start"})

	select {
	case got := <-h.got:
		assert.Equal(t, "pizza", got.TenantID)
		assert.Equal(t, "start", got.Command)
	case <-time.After(time.Second):
		t.Fatal("polled event not dispatched")
	}
}

func TestLookupByToken(t *testing.T) {
	conn := newFakeConnector()
	r, _ := newTestRegistry(t, "", conn)
	require.NoError(t, r.Start(context.Background(), tenant("pizza")))

	info, ok := r.LookupByToken("token-pizza")
	require.True(t, ok)
	assert.Equal(t, "pizza", info.TenantID)

	_, ok = r.LookupByToken("token-unknown")
	assert.False(t, ok)

	c, err := r.Client("pizza")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestWebhookSecret_Stable(t *testing.T) {
	assert.Equal(t, WebhookSecret("a"), WebhookSecret("a"))
	assert.NotEqual(t, WebhookSecret("a"), WebhookSecret("b"))
	assert.Len(t, WebhookSecret("a"), 64)
}
