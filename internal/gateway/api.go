// ABOUTME: Admin HTTP API handlers for reloads, sessions, order transitions and broadcasts
// ABOUTME: Every route sits behind the admin bearer token; the acting operator comes from the request context

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/storefront-gateway/internal/auth"
	"github.com/2389/storefront-gateway/internal/bot"
	"github.com/2389/storefront-gateway/internal/broadcast"
	"github.com/2389/storefront-gateway/internal/orders"
	"github.com/2389/storefront-gateway/internal/store"
)

// maxRequestBody caps admin API request bodies.
const maxRequestBody = 1 << 20

// ReloadResponse is the JSON response for POST /api/admin/reload.
type ReloadResponse struct {
	Tenants  int               `json:"tenants"`
	Sessions []bot.SessionInfo `json:"sessions"`
}

// TransitionRequest is the JSON request body for POST /api/orders/{id}/transition.
type TransitionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment,omitempty"`
}

// OrderResponse is the JSON view of an order after an admin action.
type OrderResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Number      int64  `json:"number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
	ProcessedBy string `json:"processed_by,omitempty"`
	Version     int64  `json:"version"`
	Outcome     string `json:"outcome,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// SendBroadcastRequest is the JSON request body for POST /api/broadcasts/send.
type SendBroadcastRequest struct {
	TenantID string `json:"tenant_id"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
}

// BroadcastResponse is the JSON view of a broadcast run.
type BroadcastResponse struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	SentBy     string `json:"sent_by"`
	Recipients int    `json:"recipients"`
	Delivered  int    `json:"delivered"`
	Failed     bool   `json:"failed"`
}

// AuditEntryResponse is the JSON view of one admin audit log entry.
type AuditEntryResponse struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Timestamp  string         `json:"timestamp"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// RetractResponse is the JSON response for POST /api/broadcasts/history/{id}/retract.
type RetractResponse struct {
	HistoryID string `json:"history_id"`
	Deleted   int    `json:"deleted"`
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Debug("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func orderResponse(order *store.Order, outcome orders.Outcome) OrderResponse {
	return OrderResponse{
		ID:          order.ID,
		TenantID:    order.TenantID,
		Number:      order.Number,
		Status:      order.Status,
		Total:       order.Total.StringFixed(2),
		ProcessedBy: order.ProcessedBy,
		Version:     order.Version,
		Outcome:     string(outcome),
		UpdatedAt:   order.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// audit records an admin action. Failures are logged and never fail the request.
func (g *Gateway) audit(ctx context.Context, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	entry := &store.AuditEntry{
		Actor:      auth.ActorName(ctx, "admin"),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := g.store.AppendAuditLog(ctx, entry); err != nil {
		g.logger.Warn("failed to append audit log", "action", action, "target_id", targetID, "error", err)
	}
}

// Reload re-reads the tenant catalogue and restarts every bot session.
func (g *Gateway) Reload(ctx context.Context) (int, error) {
	n, err := syncTenants(ctx, g.config, g.store)
	if err != nil {
		return 0, err
	}
	if err := g.registry.Reload(ctx); err != nil {
		return n, fmt.Errorf("restarting bot sessions: %w", err)
	}
	g.logger.Info("gateway reloaded", "tenants", n, "sessions", len(g.registry.Sessions()))
	return n, nil
}

// handleReload handles POST /api/admin/reload.
func (g *Gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	n, err := g.Reload(r.Context())
	if err != nil {
		g.logger.Error("reload failed", "actor", auth.ActorName(r.Context(), "admin"), "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	g.audit(r.Context(), store.AuditReloadTenants, "tenants", "", map[string]any{"tenants": n})
	g.sendJSON(w, http.StatusOK, ReloadResponse{Tenants: n, Sessions: g.registry.Sessions()})
}

// handleSessions handles GET /api/admin/sessions.
func (g *Gateway) handleSessions(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, g.registry.Sessions())
}

// handleAnnounceOrder handles POST /api/orders/{id}/announce, called by the
// order placement service once an order is stored.
func (g *Gateway) handleAnnounceOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	order, err := g.orders.Announce(r.Context(), orderID)
	switch {
	case err == nil:
		g.audit(r.Context(), store.AuditAnnounceOrder, "order", orderID, nil)
		g.sendJSON(w, http.StatusOK, orderResponse(order, ""))
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orders.ErrNoOperatorChat):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, bot.ErrNoSession):
		g.sendJSONError(w, http.StatusServiceUnavailable, "tenant bot is not running")
	default:
		g.logger.Error("failed to announce order", "order_id", orderID, "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "failed to announce order")
	}
}

// handleTransitionOrder handles POST /api/orders/{id}/transition. Applied and
// already-applied outcomes are 200; an invalid transition is 409.
func (g *Gateway) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var req TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := auth.ActorName(r.Context(), "admin")
	result, err := g.orders.Advance(r.Context(), orderID, orders.Action(strings.TrimSpace(req.Action)), actor, req.Comment)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrUnknownAction), errors.Is(err, orders.ErrReasonRequired):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "order not found")
		return
	default:
		g.logger.Error("failed to transition order", "order_id", orderID, "action", req.Action, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusOK
	if result.Err() != nil {
		status = http.StatusConflict
	}
	if result.Outcome == orders.OutcomeApplied {
		g.audit(r.Context(), store.AuditTransitionOrder, "order", orderID, map[string]any{
			"action": req.Action,
			"status": result.Order.Status,
		})
	}
	g.sendJSON(w, status, orderResponse(result.Order, result.Outcome))
}

// handleSendBroadcast handles POST /api/broadcasts/send.
func (g *Gateway) handleSendBroadcast(w http.ResponseWriter, r *http.Request) {
	var req SendBroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TenantID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	author := auth.ActorName(r.Context(), "admin")
	history, err := g.scheduler.SendNow(r.Context(), req.TenantID, req.Message, req.ImageURL, author)
	switch {
	case err == nil:
	case errors.Is(err, broadcast.ErrEmptyMessage):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "tenant not found")
		return
	case errors.Is(err, broadcast.ErrNoSession):
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		g.logger.Error("broadcast failed", "tenant_id", req.TenantID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "broadcast failed")
		return
	}

	g.audit(r.Context(), store.AuditSendBroadcast, "broadcast", history.ID, map[string]any{
		"tenant_id": history.TenantID,
		"delivered": history.Delivered,
	})
	g.sendJSON(w, http.StatusOK, BroadcastResponse{
		ID:         history.ID,
		TenantID:   history.TenantID,
		SentBy:     history.SentBy,
		Recipients: history.Recipients,
		Delivered:  history.Delivered,
		Failed:     history.Failed,
	})
}

// handleRetractBroadcast handles POST /api/broadcasts/history/{id}/retract.
func (g *Gateway) handleRetractBroadcast(w http.ResponseWriter, r *http.Request) {
	historyID := r.PathValue("id")
	deleted, err := g.scheduler.Retract(r.Context(), historyID)
	switch {
	case err == nil:
		g.audit(r.Context(), store.AuditRetractBroadcast, "broadcast", historyID, map[string]any{"deleted": deleted})
		g.sendJSON(w, http.StatusOK, RetractResponse{HistoryID: historyID, Deleted: deleted})
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "broadcast not found")
	case errors.Is(err, broadcast.ErrAlreadyRetracted):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, broadcast.ErrNoSession):
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		g.logger.Error("retract failed", "history_id", historyID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "retract failed")
	}
}

// handleAudit handles GET /api/admin/audit?actor=&action=&target_id=&since=&limit=.
func (g *Gateway) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.AuditFilter
	if v := q.Get("actor"); v != "" {
		filter.Actor = &v
	}
	if v := q.Get("action"); v != "" {
		action := store.AuditAction(v)
		filter.Action = &action
	}
	if v := q.Get("target_id"); v != "" {
		filter.TargetID = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &since
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	entries, err := g.store.ListAuditLog(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list audit log", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			Actor:      e.Actor,
			Action:     string(e.Action),
			TargetType: e.TargetType,
			TargetID:   e.TargetID,
			Timestamp:  e.Timestamp.UTC().Format(time.RFC3339),
			Detail:     e.Detail,
		})
	}
	g.sendJSON(w, http.StatusOK, out)
}
