// ABOUTME: Order Lifecycle Coordinator applying operator steps exactly once effectively
// ABOUTME: Conditional status writes are the only synchronization; notifications are best-effort

package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// Coordinator errors
var (
	ErrUnknownAction     = errors.New("unknown order action")
	ErrReasonRequired    = errors.New("cancellation requires a reason")
	ErrNoOperatorChat    = errors.New("tenant has no operator chat configured")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
)

// operatorLocale is used for operator-facing texts in group chats.
const operatorLocale = i18n.DefaultLocale

// Outcome reports what a transition request did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeInvalid        Outcome = "invalid"
)

// Result is the outcome plus the order as persisted afterwards.
type Result struct {
	Outcome Outcome
	Order   *store.Order
}

// Err is ErrInvalidTransition for an invalid outcome and nil otherwise.
func (r Result) Err() error {
	if r.Outcome == OutcomeInvalid {
		return ErrInvalidTransition
	}
	return nil
}

// Sessions resolves a tenant to its live transport client.
type Sessions interface {
	Client(tenantID string) (telegram.Client, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source used for audit events.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator owns every order status change.
type Coordinator struct {
	store    store.Store
	sessions Sessions
	states   convstate.Store
	texts    *i18n.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(st store.Store, sessions Sessions, states convstate.Store, texts *i18n.Catalog, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:    st,
		sessions: sessions,
		states:   states,
		texts:    texts,
		logger:   logger.With("component", "orders"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Advance applies action to the order if its persisted status is still the
// action's source status. A lost race is reported as already applied or
// invalid, never as an error.
func (c *Coordinator) Advance(ctx context.Context, orderID string, action Action, actor, comment string) (Result, error) {
	return c.advance(ctx, orderID, action, actor, comment, messageRef{})
}

// messageRef points at an operator-facing message a button was pressed on.
type messageRef struct {
	chatID    int64
	messageID int
}

func (m messageRef) valid() bool {
	return m.chatID != 0 && m.messageID != 0
}

// advance is Advance with the message the operator pressed, which is kept in
// sync with the order alongside the recorded announcement.
func (c *Coordinator) advance(ctx context.Context, orderID string, action Action, actor, comment string, pressed messageRef) (Result, error) {
	e, ok := action.edge()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	comment = strings.TrimSpace(comment)
	if action == ActionCancel && comment == "" {
		return Result{}, ErrReasonRequired
	}

	applied, err := c.store.TransitionOrder(ctx, store.OrderTransition{
		OrderID: orderID,
		From:    string(e.from),
		To:      string(e.to),
		Actor:   actor,
		Comment: comment,
		At:      c.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("transitioning order %s: %w", orderID, err)
	}

	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("loading order %s: %w", orderID, err)
	}

	logger := c.logger.With("tenant_id", order.TenantID, "order_id", orderID, "action", action, "actor", actor)
	if !applied {
		outcome := classify(Status(order.Status), action)
		logger.Info("order transition not applied", "status", order.Status, "outcome", outcome)
		// a stale copy still shows buttons for a step that is already done
		if pressed.valid() && !isAnnouncement(order, pressed) {
			c.editAnnouncement(ctx, order, pressed)
		}
		return Result{Outcome: outcome, Order: order}, nil
	}

	logger.Info("order transitioned", "from", e.from, "to", e.to, "version", order.Version)
	c.notifyCustomer(ctx, order)
	c.refreshAnnouncement(ctx, order, pressed)
	return Result{Outcome: OutcomeApplied, Order: order}, nil
}

// Announce posts the operator announcement for an order and remembers the
// message so later transitions can edit it in place.
func (c *Coordinator) Announce(ctx context.Context, orderID string) (*store.Order, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading order %s: %w", orderID, err)
	}
	tenant, err := c.store.GetTenant(ctx, order.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading tenant %s: %w", order.TenantID, err)
	}
	if tenant.OperatorChatID == 0 {
		return nil, ErrNoOperatorChat
	}
	client, err := c.sessions.Client(order.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant %s: %w", order.TenantID, err)
	}

	text := c.renderAnnouncement(operatorLocale, order, c.customer(ctx, order))
	messageID, err := client.SendText(ctx, tenant.OperatorChatID, text, c.actionMarkup(operatorLocale, order))
	if err != nil {
		return nil, fmt.Errorf("posting announcement: %w", err)
	}
	if err := c.store.SetOrderAnnouncement(ctx, order.ID, tenant.OperatorChatID, messageID); err != nil {
		return nil, fmt.Errorf("saving announcement reference: %w", err)
	}
	order.AnnounceChatID = tenant.OperatorChatID
	order.AnnounceMessageID = messageID

	c.logger.Info("order announced", "tenant_id", order.TenantID, "order_id", order.ID, "message_id", messageID)
	return order, nil
}

func (c *Coordinator) customer(ctx context.Context, order *store.Order) *store.User {
	user, err := c.store.GetUser(ctx, order.UserID)
	if err != nil {
		c.logger.Warn("loading order customer", "tenant_id", order.TenantID, "order_id", order.ID, "error", err)
		return nil
	}
	return user
}

func (c *Coordinator) localeFor(ctx context.Context, telegramID int64) string {
	locale, err := c.store.GetLocale(ctx, telegramID)
	if err != nil {
		c.logger.Debug("loading locale", "telegram_id", telegramID, "error", err)
	}
	return c.texts.Match(locale)
}

// notifyCustomer tells the customer about the order's current status.
func (c *Coordinator) notifyCustomer(ctx context.Context, order *store.Order) {
	user := c.customer(ctx, order)
	if user == nil || user.TelegramID == 0 {
		return
	}
	client, err := c.sessions.Client(order.TenantID)
	if err != nil {
		c.logger.Warn("no session for customer notification", "tenant_id", order.TenantID, "order_id", order.ID, "error", err)
		return
	}

	text := c.customerNotice(c.localeFor(ctx, user.TelegramID), order)
	if _, err := client.SendText(ctx, user.TelegramID, text, nil); err != nil {
		c.logger.Warn("notifying customer", "tenant_id", order.TenantID, "order_id", order.ID, "error", err)
	}
}

func isAnnouncement(order *store.Order, ref messageRef) bool {
	return order.AnnounceChatID == ref.chatID && order.AnnounceMessageID == ref.messageID
}

// refreshAnnouncement edits the recorded announcement, and the pressed message
// when it is a different copy, to the current state.
func (c *Coordinator) refreshAnnouncement(ctx context.Context, order *store.Order, pressed messageRef) {
	if order.AnnounceMessageID != 0 {
		c.editAnnouncement(ctx, order, messageRef{chatID: order.AnnounceChatID, messageID: order.AnnounceMessageID})
	}
	if pressed.valid() && !isAnnouncement(order, pressed) {
		c.editAnnouncement(ctx, order, pressed)
	}
}

func (c *Coordinator) editAnnouncement(ctx context.Context, order *store.Order, ref messageRef) {
	client, err := c.sessions.Client(order.TenantID)
	if err != nil {
		c.logger.Warn("no session for announcement edit", "tenant_id", order.TenantID, "order_id", order.ID, "error", err)
		return
	}

	text := c.renderAnnouncement(operatorLocale, order, c.customer(ctx, order))
	if err := client.EditText(ctx, ref.chatID, ref.messageID, text, c.actionMarkup(operatorLocale, order)); err != nil {
		c.logger.Warn("editing announcement", "tenant_id", order.TenantID, "order_id", order.ID, "message_id", ref.messageID, "error", err)
	}
}

func (c *Coordinator) actionMarkup(locale string, order *store.Order) *telegram.Markup {
	actions := Next(Status(order.Status))
	if len(actions) == 0 {
		return nil
	}
	row := make([]telegram.Button, 0, len(actions))
	for _, a := range actions {
		row = append(row, telegram.CallbackButton(c.texts.Text(locale, actionButtons[a]), CallbackData(a, order.ID)))
	}
	return telegram.Inline(row)
}
