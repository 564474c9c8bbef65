// ABOUTME: Tests for the admin HTTP API handlers
// ABOUTME: Covers auth, reload, sessions, order announce/transition and broadcast send/retract

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/storefront-gateway/internal/bot"
	"github.com/2389/storefront-gateway/internal/store"
)

func adminHeader(actor string) map[string]string {
	h := map[string]string{"Authorization": "Bearer " + testAdminToken}
	if actor != "" {
		h["X-Storefront-Actor"] = actor
	}
	return h
}

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

// seedOrder registers the customer and stores a new order for plov.
func seedOrder(t *testing.T, gw *Gateway) (*store.User, *store.Order) {
	t.Helper()
	ctx := context.Background()

	customer := &store.User{TelegramID: customerTG, Username: "aziza", FullName: "Aziza", Phone: "+998901112233", Active: true}
	require.NoError(t, gw.store.RegisterUser(ctx, customer, "plov"))

	order := &store.Order{
		TenantID: "plov",
		UserID:   customer.ID,
		Total:    decimal.NewFromInt(55000),
		Address:  "Chilanzar 5",
		Items: []store.OrderItem{
			{Name: "Plov", Quantity: 1, Price: decimal.NewFromInt(40000)},
			{Name: "Tea", Quantity: 1, Price: decimal.NewFromInt(15000)},
		},
	}
	require.NoError(t, gw.store.CreateOrder(ctx, order))
	return customer, order
}

func TestAdminAPI_Auth(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), true)

	rec := doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/sessions", "",
		map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/sessions", "", adminHeader(""))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAPI_DisabledWithoutToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.AdminToken = ""
	gw, _ := newTestGateway(t, cfg, false)

	rec := doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/sessions", "", adminHeader(""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSessions(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), true)

	rec := doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/sessions", "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)

	sessions := decodeBody[[]bot.SessionInfo](t, rec.Body.Bytes())
	require.Len(t, sessions, 1)
	assert.Equal(t, "plov", sessions[0].TenantID)
	assert.Equal(t, bot.ModePush, sessions[0].Mode)
}

func TestHandleReload(t *testing.T) {
	cfg := testConfig(t)
	gw, bots := newTestGateway(t, cfg, true)

	require.NoError(t, os.WriteFile(cfg.Tenants.Path, []byte(testTenants+`
[[tenant]]
id = "samsa"
name = "Samsa Corner"
bot_token = "222:samsa"
`), 0644))

	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/admin/reload", "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ReloadResponse](t, rec.Body.Bytes())
	assert.Equal(t, 2, resp.Tenants)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "samsa", resp.Sessions[1].TenantID)
	assert.NotNil(t, bots.client("222:samsa"))
}

func TestHandleReload_BadCatalogueKeepsSessions(t *testing.T) {
	cfg := testConfig(t)
	gw, _ := newTestGateway(t, cfg, true)

	require.NoError(t, os.WriteFile(cfg.Tenants.Path, []byte("[[tenant]]\nid = \"x\"\n"), 0644))

	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/admin/reload", "", adminHeader(""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, gw.registry.Sessions(), 1)
}

func TestHandleAnnounceOrder(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)
	_, order := seedOrder(t, gw)

	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/orders/"+order.ID+"/announce", "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[OrderResponse](t, rec.Body.Bytes())
	assert.Equal(t, order.ID, resp.ID)
	assert.Equal(t, "55000.00", resp.Total)

	msg, ok := bots.client(plovToken).LastTo(operatorChat)
	require.True(t, ok)
	assert.NotNil(t, msg.Markup)

	stored, err := gw.store.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, operatorChat, stored.AnnounceChatID)
	assert.Equal(t, msg.MessageID, stored.AnnounceMessageID)

	rec = doRequest(t, gw.Handler(), http.MethodPost, "/api/orders/missing/announce", "", adminHeader(""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTransitionOrder(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)
	_, order := seedOrder(t, gw)
	path := "/api/orders/" + order.ID + "/transition"

	rec := doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"confirm"}`, adminHeader("Dilnoza"))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[OrderResponse](t, rec.Body.Bytes())
	assert.Equal(t, "applied", resp.Outcome)
	assert.Equal(t, store.OrderStatusPreparing, resp.Status)
	assert.Equal(t, "Dilnoza", resp.ProcessedBy)

	// the customer hears about it
	assert.NotEmpty(t, bots.client(plovToken).MessagesTo(customerTG))

	// a repeated press is reported, not applied twice
	rec = doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"confirm"}`, adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[OrderResponse](t, rec.Body.Bytes())
	assert.Equal(t, "already_applied", resp.Outcome)
	assert.Equal(t, "Dilnoza", resp.ProcessedBy)

	events, err := gw.store.ListOrderEvents(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2) // creation + confirm

	// completing a preparing order skips delivery
	rec = doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"complete"}`, adminHeader(""))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid", decodeBody[OrderResponse](t, rec.Body.Bytes()).Outcome)
}

func TestHandleTransitionOrder_BadRequests(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), true)
	_, order := seedOrder(t, gw)
	path := "/api/orders/" + order.ID + "/transition"

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"invalid json", path, `{`, http.StatusBadRequest},
		{"unknown field", path, `{"action":"confirm","extra":1}`, http.StatusBadRequest},
		{"unknown action", path, `{"action":"refund"}`, http.StatusBadRequest},
		{"cancel without reason", path, `{"action":"cancel"}`, http.StatusBadRequest},
		{"missing order", "/api/orders/nope/transition", `{"action":"confirm"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, gw.Handler(), http.MethodPost, tt.path, tt.body, adminHeader(""))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"cancel","comment":"out of rice"}`, adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.OrderStatusCancelled, decodeBody[OrderResponse](t, rec.Body.Bytes()).Status)
}

func TestBroadcastSendAndRetract(t *testing.T) {
	gw, bots := newTestGateway(t, testConfig(t), true)
	seedOrder(t, gw)
	client := bots.client(plovToken)

	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/broadcasts/send",
		`{"tenant_id":"plov","message":"**Free tea** today"}`, adminHeader("Dilnoza"))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[BroadcastResponse](t, rec.Body.Bytes())
	assert.Equal(t, "Dilnoza", resp.SentBy)
	assert.Equal(t, 1, resp.Recipients)
	assert.Equal(t, 1, resp.Delivered)

	msg, ok := client.LastTo(customerTG)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "<b>Plov House</b>")
	assert.Contains(t, msg.Text, "<b>Free tea</b>")

	retract := "/api/broadcasts/history/" + resp.ID + "/retract"
	rec = doRequest(t, gw.Handler(), http.MethodPost, retract, "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[RetractResponse](t, rec.Body.Bytes()).Deleted)
	assert.Len(t, client.DeletedList(), 1)

	rec = doRequest(t, gw.Handler(), http.MethodPost, retract, "", adminHeader(""))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBroadcastSend_Errors(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), false)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing tenant", `{"message":"hi"}`, http.StatusBadRequest},
		{"empty message", `{"tenant_id":"plov","message":"  "}`, http.StatusBadRequest},
		{"unknown tenant", `{"tenant_id":"nope","message":"hi"}`, http.StatusNotFound},
		{"no session", `{"tenant_id":"plov","message":"hi"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/broadcasts/send", tt.body, adminHeader(""))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	rec := doRequest(t, gw.Handler(), http.MethodPost, "/api/broadcasts/history/missing/retract", "", adminHeader(""))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAudit(t *testing.T) {
	gw, _ := newTestGateway(t, testConfig(t), true)
	_, order := seedOrder(t, gw)
	path := "/api/orders/" + order.ID + "/transition"

	rec := doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"confirm"}`, adminHeader("Dilnoza"))
	require.Equal(t, http.StatusOK, rec.Code)
	// already applied, not audited again
	rec = doRequest(t, gw.Handler(), http.MethodPost, path, `{"action":"confirm"}`, adminHeader("Bekzod"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, gw.Handler(), http.MethodPost, "/api/broadcasts/send",
		`{"tenant_id":"plov","message":"hello"}`, adminHeader("Bekzod"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/audit", "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]AuditEntryResponse](t, rec.Body.Bytes())
	require.Len(t, entries, 2)

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/audit?actor=Dilnoza", "", adminHeader(""))
	require.Equal(t, http.StatusOK, rec.Code)
	entries = decodeBody[[]AuditEntryResponse](t, rec.Body.Bytes())
	require.Len(t, entries, 1)
	assert.Equal(t, string(store.AuditTransitionOrder), entries[0].Action)
	assert.Equal(t, order.ID, entries[0].TargetID)
	assert.Equal(t, store.OrderStatusPreparing, entries[0].Detail["status"])

	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/audit?since=yesterday", "", adminHeader(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, gw.Handler(), http.MethodGet, "/api/admin/audit?limit=-1", "", adminHeader(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
