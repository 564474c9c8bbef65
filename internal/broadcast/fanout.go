// ABOUTME: Broadcast fan-out to a tenant's audience and retraction of delivered messages
// ABOUTME: Every delivered message id is recorded so a run can be deleted later

package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// ErrEmptyMessage rejects a broadcast without text.
var ErrEmptyMessage = errors.New("broadcast message is empty")

// ErrAlreadyRetracted indicates the run was retracted before.
var ErrAlreadyRetracted = errors.New("broadcast already retracted")

// Render builds the message body: the tenant name as a header, then the
// Markdown message as transport HTML.
func Render(tenantName, message string) string {
	return "📢 <b>" + richtext.Escape(tenantName) + "</b>\n\n" + richtext.ToHTML(message)
}

// SendNow broadcasts message to the tenant's audience right away and returns
// the finished history record.
func (s *Scheduler) SendNow(ctx context.Context, tenantID, message, imageURL, author string) (*store.BroadcastHistory, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	client, err := s.sessions.Client(tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	history := &store.BroadcastHistory{
		TenantID: tenant.ID,
		Message:  message,
		ImageURL: imageURL,
		SentBy:   author,
	}
	if err := s.deliver(ctx, client, tenant, history); err != nil {
		return history, err
	}
	return history, nil
}

// deliver opens a history record, fans out and stores the counters. The
// returned error means the run as a whole failed.
func (s *Scheduler) deliver(ctx context.Context, client telegram.Client, tenant *store.Tenant, history *store.BroadcastHistory) error {
	if err := s.store.CreateBroadcastHistory(ctx, history); err != nil {
		return err
	}

	recipients, delivered, err := s.fanOut(ctx, client, tenant, history)
	history.Recipients = recipients
	history.Delivered = delivered
	history.Failed = err != nil

	if finishErr := s.store.FinishBroadcastHistory(context.WithoutCancel(ctx), history.ID, recipients, delivered, history.Failed); finishErr != nil {
		s.logger.Error("saving broadcast counters", "history_id", history.ID, "error", finishErr)
	}

	s.logger.Info("broadcast delivered",
		"tenant_id", tenant.ID,
		"history_id", history.ID,
		"recipients", recipients,
		"delivered", delivered,
		"failed", history.Failed,
	)
	return err
}

func (s *Scheduler) fanOut(ctx context.Context, client telegram.Client, tenant *store.Tenant, history *store.BroadcastHistory) (int, int, error) {
	audience, err := s.store.ListAudience(ctx, tenant.ID)
	if err != nil {
		return 0, 0, err
	}

	text := Render(tenant.Name, history.Message)
	delivered := 0
	for _, r := range audience {
		if err := s.limiter.Wait(ctx); err != nil {
			return len(audience), delivered, err
		}

		var messageID int
		if history.ImageURL != "" {
			messageID, err = client.SendPhoto(ctx, r.ChatID, history.ImageURL, text, nil)
		} else {
			messageID, err = client.SendText(ctx, r.ChatID, text, nil)
		}
		if err != nil {
			level := s.logger.Warn
			if telegram.IsForbidden(err) {
				level = s.logger.Debug
			}
			level("broadcast send failed", "history_id", history.ID, "user_id", r.UserID, "error", err)
			continue
		}
		delivered++

		sent := &store.SentMessage{HistoryID: history.ID, ChatID: r.ChatID, MessageID: messageID}
		if err := s.store.RecordSentMessage(ctx, sent); err != nil {
			s.logger.Warn("recording sent message", "history_id", history.ID, "error", err)
		}
	}
	return len(audience), delivered, nil
}

// Retract deletes every message a run delivered, continuing past failures,
// and marks the run retracted. It returns how many messages were deleted.
func (s *Scheduler) Retract(ctx context.Context, historyID string) (int, error) {
	history, err := s.store.GetBroadcastHistory(ctx, historyID)
	if err != nil {
		return 0, err
	}
	if history.Retracted {
		return 0, ErrAlreadyRetracted
	}
	client, err := s.sessions.Client(history.TenantID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	sent, err := s.store.ListSentMessages(ctx, historyID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, msg := range sent {
		if err := s.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		if err := client.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			s.logger.Warn("deleting broadcast message", "history_id", historyID, "chat_id", msg.ChatID, "error", err)
			continue
		}
		deleted++
	}

	if err := s.store.MarkRetracted(ctx, historyID, s.now()); err != nil {
		return deleted, err
	}
	s.logger.Info("broadcast retracted", "history_id", historyID, "deleted", deleted, "recorded", len(sent))
	return deleted, nil
}
