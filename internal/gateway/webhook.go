// ABOUTME: Webhook ingress for tenants in push mode
// ABOUTME: Verifies the per-tenant secret header, decodes the update and dispatches it to the bot registry

package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/2389/storefront-gateway/internal/telegram"
)

// SecretTokenHeader carries the secret registered with the webhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBody caps a single webhook update.
const maxUpdateBody = 1 << 20

// handleWebhook handles POST /api/telegram/webhook/{tenantID}. Anything from
// the platform is acknowledged with 200, even updates that are dropped, so
// the platform never retries them. Only a wrong secret is rejected.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenantID")
	logger := g.logger.With("tenant_id", tenantID)

	if !g.registry.VerifyWebhook(tenantID, r.Header.Get(SecretTokenHeader)) {
		logger.Warn("rejecting webhook with bad secret or no push session", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody)).Decode(&update); err != nil {
		logger.Warn("undecodable webhook update", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	evt, ok := telegram.FromUpdate(tenantID, update)
	if !ok {
		logger.Debug("ignoring update", "update_id", update.UpdateID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if !g.registry.Dispatch(evt) {
		logger.Debug("webhook update not dispatched", "update_id", update.UpdateID)
	}
	w.WriteHeader(http.StatusOK)
}
