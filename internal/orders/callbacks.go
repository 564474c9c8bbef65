// ABOUTME: Operator button handling and two-phase cancellation
// ABOUTME: Cancel captures operator and message context, a later text supplies the reason

package orders

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// Payload keys of an awaiting_rejection_reason state.
const (
	PayloadOrderID   = "order_id"
	PayloadOperator  = "operator"
	PayloadChatID    = "chat_id"
	PayloadMessageID = "message_id"
)

var ackKeys = map[Outcome]i18n.Key{
	OutcomeApplied:        i18n.AckApplied,
	OutcomeAlreadyApplied: i18n.AckAlreadyApplied,
	OutcomeInvalid:        i18n.AckInvalid,
}

// OperatorName is how an operator is recorded in audit events.
func OperatorName(texts *i18n.Catalog, u telegram.User) string {
	switch {
	case u.FirstName != "":
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	case u.Username != "":
		return "@" + u.Username
	default:
		return texts.Text(operatorLocale, i18n.OperatorDefaultName)
	}
}

// HandleCallback processes an order:<action>:<orderID> button press. Every
// press is acknowledged, including duplicates and stale buttons.
func (c *Coordinator) HandleCallback(ctx context.Context, evt telegram.Event) {
	client, err := c.sessions.Client(evt.TenantID)
	if err != nil {
		c.logger.Warn("order callback without session", "tenant_id", evt.TenantID, "error", err)
		return
	}
	ack := func(key i18n.Key) {
		if err := client.AnswerCallback(ctx, evt.CallbackID, c.texts.Text(operatorLocale, key), false); err != nil {
			c.logger.Warn("answering order callback", "tenant_id", evt.TenantID, "error", err)
		}
	}

	action, orderID, ok := ParseCallback(evt.CallbackData)
	if !ok {
		ack(i18n.MsgExpired)
		return
	}

	order, err := c.store.GetOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && order.TenantID != evt.TenantID) {
		ack(i18n.AckNotFound)
		return
	}
	if err != nil {
		c.logger.Error("loading order for callback", "tenant_id", evt.TenantID, "order_id", orderID, "error", err)
		ack(i18n.MsgGenericError)
		return
	}

	// Adopt the pressed message as the announcement when none was recorded.
	pressed := messageRef{chatID: evt.ChatID, messageID: evt.MessageID}
	if order.AnnounceMessageID == 0 && pressed.valid() {
		if err := c.store.SetOrderAnnouncement(ctx, order.ID, evt.ChatID, evt.MessageID); err != nil {
			c.logger.Warn("adopting announcement", "tenant_id", evt.TenantID, "order_id", order.ID, "error", err)
		}
	}

	operator := OperatorName(c.texts, evt.From)
	if action == ActionCancel {
		c.beginCancel(ctx, client, evt, order, operator, ack)
		return
	}

	res, err := c.advance(ctx, order.ID, action, operator, "", pressed)
	if err != nil {
		c.logger.Error("advancing order", "tenant_id", evt.TenantID, "order_id", order.ID, "error", err)
		ack(i18n.MsgGenericError)
		return
	}
	ack(ackKeys[res.Outcome])
}

func (c *Coordinator) beginCancel(ctx context.Context, client telegram.Client, evt telegram.Event, order *store.Order, operator string, ack func(i18n.Key)) {
	if Status(order.Status) != StatusNew {
		ack(ackKeys[classify(Status(order.Status), ActionCancel)])
		return
	}

	key := convstate.DialogueKey(evt.TenantID, evt.ChatID, evt.From.ID)
	state := convstate.NewState(convstate.TagAwaitingRejectionReason).
		With(PayloadOrderID, order.ID).
		With(PayloadOperator, operator).
		With(PayloadChatID, strconv.FormatInt(evt.ChatID, 10)).
		With(PayloadMessageID, strconv.Itoa(evt.MessageID))
	if err := c.states.Put(ctx, key, state); err != nil {
		c.logger.Error("saving cancellation context", "tenant_id", evt.TenantID, "order_id", order.ID, "error", err)
		ack(i18n.MsgGenericError)
		return
	}

	prompt := c.texts.Text(operatorLocale, i18n.MsgAskRejectReason, number(order))
	if _, err := client.SendText(ctx, evt.ChatID, prompt, telegram.ForceReply("")); err != nil {
		c.logger.Warn("prompting for cancel reason", "tenant_id", evt.TenantID, "order_id", order.ID, "error", err)
	}
	ack("")
	c.logger.Info("order cancellation started", "tenant_id", evt.TenantID, "order_id", order.ID, "operator", operator)
}

// CompleteCancel applies a pending cancellation using evt's text as the
// reason. The pending state is consumed once a non-empty reason arrives,
// whatever the outcome.
func (c *Coordinator) CompleteCancel(ctx context.Context, evt telegram.Event, state convstate.State) {
	client, err := c.sessions.Client(evt.TenantID)
	if err != nil {
		c.logger.Warn("cancel reason without session", "tenant_id", evt.TenantID, "error", err)
		return
	}
	reply := func(text string) {
		if _, err := client.SendText(ctx, evt.ChatID, text, nil); err != nil {
			c.logger.Warn("replying to operator", "tenant_id", evt.TenantID, "error", err)
		}
	}

	reason := strings.TrimSpace(evt.Text)
	if reason == "" {
		reply(c.texts.Text(operatorLocale, i18n.MsgReasonEmpty))
		return
	}

	key := convstate.DialogueKey(evt.TenantID, evt.ChatID, evt.From.ID)
	if err := c.states.Delete(ctx, key); err != nil {
		c.logger.Warn("clearing cancellation context", "tenant_id", evt.TenantID, "error", err)
	}

	orderID := state.Value(PayloadOrderID)
	operator := state.Value(PayloadOperator)
	if operator == "" {
		operator = OperatorName(c.texts, evt.From)
	}

	res, err := c.advance(ctx, orderID, ActionCancel, operator, reason, pressedRef(state))
	if err != nil {
		c.logger.Error("cancelling order", "tenant_id", evt.TenantID, "order_id", orderID, "error", err)
		reply(c.texts.Text(operatorLocale, i18n.MsgGenericError))
		return
	}

	switch res.Outcome {
	case OutcomeApplied:
		reply(c.texts.Text(operatorLocale, i18n.MsgOrderCancelledOp,
			number(res.Order), richtext.Escape(reason), richtext.Escape(operator)))
	default:
		reply(c.texts.Text(operatorLocale, ackKeys[res.Outcome]))
	}
}

// pressedRef recovers the message captured when cancel was pressed.
func pressedRef(state convstate.State) messageRef {
	chatID, _ := strconv.ParseInt(state.Value(PayloadChatID), 10, 64)
	messageID, _ := strconv.Atoi(state.Value(PayloadMessageID))
	return messageRef{chatID: chatID, messageID: messageID}
}
