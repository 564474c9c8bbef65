// ABOUTME: Dialogue Engine routing inbound events through a per-user state machine
// ABOUTME: Commands reset state, everything else goes through the (state, kind) handler table

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/orders"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// DefaultResetCooldown is the minimum gap between successful credential resets.
const DefaultResetCooldown = 5 * time.Minute

// Config holds engine settings.
type Config struct {
	// WebAppBaseURL is the web storefront; empty disables menu links.
	WebAppBaseURL string
	// ResetCooldown defaults to DefaultResetCooldown.
	ResetCooldown time.Duration
	// SupportUsername is shown to blocked users when the tenant has none.
	SupportUsername string
}

// Sessions resolves a tenant to its live transport client.
type Sessions interface {
	Client(tenantID string) (telegram.Client, error)
}

// Orders receives the order flows the engine does not own.
type Orders interface {
	HandleCallback(ctx context.Context, evt telegram.Event)
	CompleteCancel(ctx context.Context, evt telegram.Event, state convstate.State)
}

// Tokens signs web app login tokens.
type Tokens interface {
	Sign(userID, username string) (string, error)
}

// handler runs one transition. A returned error is logged and the user is
// shown the generic failure text.
type handler func(ctx context.Context, t *turn) error

// turn is everything known while handling one event.
type turn struct {
	evt    telegram.Event
	client telegram.Client
	tenant *store.Tenant
	user   *store.User // nil until registered
	key    convstate.Key
	state  convstate.State
	locale string
	acked  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source for opening hours.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the Dialogue Engine. It implements bot.Handler.
type Engine struct {
	cfg       Config
	store     store.Store
	states    convstate.Store
	cooldowns convstate.Cooldowns
	sessions  Sessions
	orders    Orders
	tokens    Tokens
	texts     *i18n.Catalog
	logger    *slog.Logger
	now       func() time.Time

	commands map[string]handler
	table    map[convstate.Tag]map[telegram.Kind]handler
}

// NewEngine wires the engine to its collaborators.
func NewEngine(cfg Config, st store.Store, states convstate.Store, cooldowns convstate.Cooldowns,
	sessions Sessions, orderFlows Orders, tokens Tokens, texts *i18n.Catalog, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetCooldown <= 0 {
		cfg.ResetCooldown = DefaultResetCooldown
	}
	if cfg.SupportUsername == "" {
		cfg.SupportUsername = "admin"
	}
	e := &Engine{
		cfg:       cfg,
		store:     st,
		states:    states,
		cooldowns: cooldowns,
		sessions:  sessions,
		orders:    orderFlows,
		tokens:    tokens,
		texts:     texts,
		logger:    logger.With("component", "dialogue"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.commands = e.buildCommands()
	e.table = e.buildTable()
	return e
}

func (e *Engine) buildCommands() map[string]handler {
	return map[string]handler{
		"start":    e.cmdStart,
		"menu":     e.cmdMenu,
		"orders":   e.cmdOrders,
		"profile":  e.cmdProfile,
		"language": e.cmdLanguage,
		"feedback": e.cmdFeedback,
		"reset":    e.cmdReset,
		"cancel":   e.cmdCancel,
		"help":     e.cmdHelp,
	}
}

// buildTable lists, for every state, the event kinds it accepts. Anything
// missing is a mismatch and a no-op.
func (e *Engine) buildTable() map[convstate.Tag]map[telegram.Kind]handler {
	return map[convstate.Tag]map[telegram.Kind]handler{
		convstate.TagIdle: {
			telegram.KindLocation: e.checkDelivery,
			telegram.KindCallback: e.menuCallback,
		},
		convstate.TagAwaitingLanguage: {
			telegram.KindCallback: e.chooseLanguage,
		},
		convstate.TagAwaitingContact: {
			telegram.KindContact: e.registrationContact,
			telegram.KindText:    e.remindContact,
		},
		convstate.TagAwaitingName: {
			telegram.KindText: e.registrationName,
		},
		convstate.TagAwaitingLocation: {
			telegram.KindLocation: e.registrationLocation,
		},
		convstate.TagAwaitingNewPhone: {
			telegram.KindContact: e.newPhoneContact,
			telegram.KindText:    e.newPhoneText,
		},
		convstate.TagAwaitingNewName: {
			telegram.KindText: e.newName,
		},
		convstate.TagAwaitingRejectionReason: {
			telegram.KindText: e.rejectionReason,
		},
		convstate.TagAwaitingFeedbackType: {
			telegram.KindCallback: e.feedbackType,
		},
		convstate.TagAwaitingFeedbackMessage: {
			telegram.KindText:     e.feedbackMessage,
			telegram.KindCallback: e.feedbackCancel,
		},
		convstate.TagAwaitingResetConfirm: {
			telegram.KindCallback: e.resetConfirm,
		},
	}
}

// HandleEvent processes one inbound event.
func (e *Engine) HandleEvent(ctx context.Context, evt telegram.Event) {
	logger := e.logger.With("tenant_id", evt.TenantID, "chat_id", evt.ChatID, "kind", evt.Kind)

	if evt.Kind == telegram.KindCallback && orders.IsCallback(evt.CallbackData) {
		e.orders.HandleCallback(ctx, evt)
		return
	}

	client, err := e.sessions.Client(evt.TenantID)
	if err != nil {
		logger.Warn("event for tenant without session", "error", err)
		return
	}
	tenant, err := e.store.GetTenant(ctx, evt.TenantID)
	if err != nil {
		logger.Error("loading tenant", "error", err)
		return
	}

	t := &turn{
		evt:    evt,
		client: client,
		tenant: tenant,
		key:    convstate.DialogueKey(evt.TenantID, evt.ChatID, evt.From.ID),
	}

	state, ok, err := e.states.Get(ctx, t.key)
	if err != nil {
		logger.Error("loading conversation state", "error", err)
		e.finishCallback(ctx, t)
		return
	}
	if !ok {
		state = convstate.NewState(convstate.TagIdle)
	}
	t.state = state

	if !evt.Private() {
		// Group chats only carry operator replies for pending cancellations.
		if state.Tag == convstate.TagAwaitingRejectionReason && evt.Kind == telegram.KindText {
			e.orders.CompleteCancel(ctx, evt, state)
		}
		// stale menu buttons in groups and inline messages without a chat
		e.finishCallback(ctx, t)
		return
	}

	t.locale = e.resolveLocale(ctx, t)

	user, err := e.store.GetUserByTelegramID(ctx, evt.From.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		logger.Error("loading account", "error", err)
		e.fail(ctx, t)
		return
	default:
		t.user = user
	}

	if t.user != nil && !t.user.Active {
		e.sendBlocked(ctx, t)
		e.finishCallback(ctx, t)
		return
	}

	h := e.route(ctx, t)
	if h == nil {
		logger.Debug("event does not match state", "state", t.state.Tag)
		if evt.Kind == telegram.KindCallback {
			e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		}
		return
	}

	if err := h(ctx, t); err != nil {
		logger.Error("dialogue step failed", "state", t.state.Tag, "error", err)
		e.fail(ctx, t)
	}
	e.finishCallback(ctx, t)
}

// route picks the handler for an event: commands first, then a pending
// language choice, then the dialogue table.
func (e *Engine) route(ctx context.Context, t *turn) handler {
	evt := t.evt
	if evt.Kind == telegram.KindCommand {
		if h, ok := e.commands[strings.ToLower(evt.Command)]; ok {
			return h
		}
		return e.cmdHelp
	}

	if evt.Kind == telegram.KindCallback && strings.HasPrefix(evt.CallbackData, langPrefix) {
		langState, ok, err := e.states.Get(ctx, e.languageKey(t))
		if err != nil {
			e.logger.Warn("loading language state", "tenant_id", evt.TenantID, "error", err)
			return nil
		}
		if !ok || langState.Tag != convstate.TagAwaitingLanguage {
			return nil
		}
		return e.table[convstate.TagAwaitingLanguage][telegram.KindCallback]
	}

	return e.table[t.state.Tag][evt.Kind]
}

func (e *Engine) resolveLocale(ctx context.Context, t *turn) string {
	if t.state.Locale != "" && e.texts.Supported(t.state.Locale) {
		return t.state.Locale
	}
	stored, err := e.store.GetLocale(ctx, t.evt.From.ID)
	if err != nil {
		e.logger.Warn("loading locale preference", "tenant_id", t.evt.TenantID, "error", err)
	}
	if stored != "" {
		return e.texts.Match(stored)
	}
	return e.texts.Match(t.evt.From.LanguageCode)
}

func (e *Engine) languageKey(t *turn) convstate.Key {
	return convstate.LanguageKey(t.evt.TenantID, t.evt.ChatID, t.evt.From.ID)
}

func (e *Engine) text(t *turn, key i18n.Key, args ...any) string {
	return e.texts.Text(t.locale, key, args...)
}

func (e *Engine) send(ctx context.Context, t *turn, text string, markup *telegram.Markup) {
	if _, err := t.client.SendText(ctx, t.evt.ChatID, text, markup); err != nil {
		e.logger.Warn("sending reply", "tenant_id", t.evt.TenantID, "chat_id", t.evt.ChatID, "error", err)
	}
}

func (e *Engine) say(ctx context.Context, t *turn, markup *telegram.Markup, key i18n.Key, args ...any) {
	e.send(ctx, t, e.text(t, key, args...), markup)
}

func (e *Engine) ack(ctx context.Context, t *turn, text string) {
	if t.evt.Kind != telegram.KindCallback || t.acked {
		return
	}
	t.acked = true
	if err := t.client.AnswerCallback(ctx, t.evt.CallbackID, text, false); err != nil {
		e.logger.Warn("answering callback", "tenant_id", t.evt.TenantID, "error", err)
	}
}

func (e *Engine) finishCallback(ctx context.Context, t *turn) {
	e.ack(ctx, t, "")
}

func (e *Engine) fail(ctx context.Context, t *turn) {
	e.say(ctx, t, nil, i18n.MsgGenericError)
}

func (e *Engine) sendBlocked(ctx context.Context, t *turn) {
	support := t.tenant.SupportUsername
	if support == "" {
		support = e.cfg.SupportUsername
	}
	e.say(ctx, t, nil, i18n.MsgBlocked, richtext.Escape(strings.TrimPrefix(support, "@")))
}

// setState overwrites the dialogue state for this turn.
func (e *Engine) setState(ctx context.Context, t *turn, state convstate.State) error {
	state.Locale = t.locale
	if err := e.states.Put(ctx, t.key, state); err != nil {
		return fmt.Errorf("saving %s state: %w", state.Tag, err)
	}
	t.state = state
	return nil
}

// clearState ends the dialogue. Failures only leave a stale state behind,
// which the next command overwrites.
func (e *Engine) clearState(ctx context.Context, t *turn) {
	if err := e.states.Delete(ctx, t.key); err != nil {
		e.logger.Warn("clearing conversation state", "tenant_id", t.evt.TenantID, "error", err)
	}
	t.state = convstate.NewState(convstate.TagIdle)
}

// requireUser replies with the registration hint when there is no account.
func (e *Engine) requireUser(ctx context.Context, t *turn) bool {
	if t.user != nil {
		return true
	}
	e.say(ctx, t, nil, i18n.MsgNotRegistered)
	return false
}

// rejectionReason hands the operator's text to the order coordinator.
func (e *Engine) rejectionReason(ctx context.Context, t *turn) error {
	e.orders.CompleteCancel(ctx, t.evt, t.state)
	return nil
}
