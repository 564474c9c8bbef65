// ABOUTME: Slash command handlers; every command overwrites whatever state is pending
// ABOUTME: Also holds the main menu, deep-link and order list rendering

package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/storefront-gateway/internal/auth"
	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/orders"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// Callback data for menu buttons.
const (
	cbMyOrders      = "my_orders"
	cbCheckDelivery = "check_delivery"
	cbNewOrder      = "new_order"
	cbFeedback      = "feedback"
	cbProfileName   = "profile:name"
	cbProfilePhone  = "profile:phone"
	cbLanguage      = "language"
)

// recentOrders is how many orders the order list shows.
const recentOrders = 5

func (e *Engine) cmdStart(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)

	if t.user != nil {
		if err := e.activateTenant(ctx, t); err != nil {
			return err
		}
		name := t.user.FullName
		if name == "" {
			name = t.evt.From.FirstName
		}
		e.say(ctx, t, e.menuMarkup(t, true), i18n.MsgWelcomeBack, richtext.Escape(name), richtext.Escape(t.tenant.Name))
		return nil
	}

	stored, err := e.store.GetLocale(ctx, t.evt.From.ID)
	if err != nil {
		return fmt.Errorf("loading locale preference: %w", err)
	}
	if stored == "" {
		return e.startLanguage(ctx, t, continueStart)
	}
	return e.startRegistration(ctx, t)
}

func (e *Engine) startRegistration(ctx context.Context, t *turn) error {
	if err := e.setState(ctx, t, convstate.NewState(convstate.TagAwaitingContact)); err != nil {
		return err
	}
	e.say(ctx, t, e.contactKeyboard(t), i18n.MsgWelcomeNew, richtext.Escape(t.tenant.Name))
	return nil
}

func (e *Engine) cmdMenu(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	if !e.requireUser(ctx, t) {
		return nil
	}
	if err := e.activateTenant(ctx, t); err != nil {
		return err
	}
	link := e.menuLink(t)
	if link == "" {
		e.say(ctx, t, nil, i18n.MsgMenuUnavailable)
		return nil
	}
	markup := telegram.Inline(telegram.Row(telegram.URLButton(e.text(t, i18n.BtnOpenMenu), link)))
	e.say(ctx, t, markup, i18n.MsgMenu, richtext.Escape(t.tenant.Name))
	return nil
}

func (e *Engine) cmdOrders(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	return e.listOrders(ctx, t)
}

func (e *Engine) cmdProfile(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	if !e.requireUser(ctx, t) {
		return nil
	}
	notSpecified := e.text(t, i18n.MsgNotSpecified)
	name, phone := notSpecified, notSpecified
	if t.user.FullName != "" {
		name = richtext.Escape(t.user.FullName)
	}
	if t.user.Phone != "" {
		phone = richtext.Escape(t.user.Phone)
	}
	markup := telegram.Inline(
		telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnEditName), cbProfileName)),
		telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnEditPhone), cbProfilePhone)),
		telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnChangeLanguage), cbLanguage)),
	)
	e.say(ctx, t, markup, i18n.MsgProfile, name, phone, richtext.Escape(t.user.Username))
	return nil
}

func (e *Engine) cmdLanguage(ctx context.Context, t *turn) error {
	return e.startLanguage(ctx, t, continueNone)
}

func (e *Engine) cmdFeedback(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	return e.startFeedback(ctx, t)
}

func (e *Engine) cmdReset(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	return e.startReset(ctx, t)
}

func (e *Engine) cmdCancel(ctx context.Context, t *turn) error {
	e.clearState(ctx, t)
	if err := e.states.Delete(ctx, e.languageKey(t)); err != nil {
		e.logger.Warn("clearing language state", "tenant_id", t.evt.TenantID, "error", err)
	}
	e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgCancelled)
	return nil
}

func (e *Engine) cmdHelp(ctx context.Context, t *turn) error {
	e.say(ctx, t, nil, i18n.MsgHelp)
	return nil
}

// menuCallback serves the buttons of the idle menu.
func (e *Engine) menuCallback(ctx context.Context, t *turn) error {
	switch t.evt.CallbackData {
	case cbMyOrders:
		return e.listOrders(ctx, t)
	case cbCheckDelivery, cbNewOrder:
		e.say(ctx, t, e.locationKeyboard(t), i18n.MsgAskLocation)
		return nil
	case cbFeedback:
		return e.startFeedback(ctx, t)
	case cbProfileName:
		return e.startNameEdit(ctx, t)
	case cbProfilePhone:
		return e.startPhoneEdit(ctx, t)
	case cbLanguage:
		return e.startLanguage(ctx, t, continueNone)
	case cbResetConfirm, cbResetCancel, cbFeedbackCancel:
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}
	if strings.HasPrefix(t.evt.CallbackData, feedbackTypePrefix) {
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}
	e.logger.Debug("unknown menu callback", "tenant_id", t.evt.TenantID, "data", t.evt.CallbackData)
	e.ack(ctx, t, e.text(t, i18n.MsgExpired))
	return nil
}

// activateTenant makes this tenant the user's current storefront.
func (e *Engine) activateTenant(ctx context.Context, t *turn) error {
	if err := e.store.LinkUserTenant(ctx, t.user.ID, t.tenant.ID); err != nil {
		return fmt.Errorf("linking user to tenant: %w", err)
	}
	if t.user.ActiveTenantID == t.tenant.ID {
		return nil
	}
	if err := e.store.SetActiveTenant(ctx, t.user.ID, t.tenant.ID); err != nil {
		return fmt.Errorf("setting active tenant: %w", err)
	}
	t.user.ActiveTenantID = t.tenant.ID
	return nil
}

// menuLink returns the signed deep link into the web app, or "" when the web
// app is not configured or signing fails.
func (e *Engine) menuLink(t *turn) string {
	if e.cfg.WebAppBaseURL == "" || e.tokens == nil || t.user == nil {
		return ""
	}
	token, err := e.tokens.Sign(t.user.ID, t.user.Username)
	if err != nil {
		e.logger.Error("signing login token", "tenant_id", t.evt.TenantID, "error", err)
		return ""
	}
	return auth.CatalogURL(e.cfg.WebAppBaseURL, token)
}

func (e *Engine) menuMarkup(t *turn, withFeedback bool) *telegram.Markup {
	var rows [][]telegram.Button
	if link := e.menuLink(t); link != "" {
		rows = append(rows, telegram.Row(telegram.URLButton(e.text(t, i18n.BtnOpenMenu), link)))
	}
	rows = append(rows, telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnMyOrders), cbMyOrders)))
	if withFeedback {
		rows = append(rows, telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnFeedback), cbFeedback)))
	}
	return telegram.Inline(rows...)
}

func (e *Engine) contactKeyboard(t *turn) *telegram.Markup {
	return telegram.ReplyKeyboard(telegram.Row(telegram.ContactButton(e.text(t, i18n.BtnShareContact))))
}

func (e *Engine) locationKeyboard(t *turn) *telegram.Markup {
	return telegram.ReplyKeyboard(telegram.Row(telegram.LocationButton(e.text(t, i18n.BtnShareLocation))))
}

func (e *Engine) listOrders(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	list, err := e.store.ListUserOrders(ctx, t.user.ID, t.tenant.ID, recentOrders)
	if err != nil {
		return fmt.Errorf("listing orders: %w", err)
	}

	newOrder := telegram.Inline(telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnNewOrder), cbNewOrder)))
	if len(list) == 0 {
		e.say(ctx, t, newOrder, i18n.MsgNoOrders)
		return nil
	}

	lines := make([]string, 0, len(list)+2)
	lines = append(lines, e.text(t, i18n.MsgOrdersHeader), "")
	for _, o := range list {
		lines = append(lines, orders.SummaryLine(e.texts, t.locale, o))
	}
	e.send(ctx, t, strings.Join(lines, "\n"), newOrder)
	return nil
}
