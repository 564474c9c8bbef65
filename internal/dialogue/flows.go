// ABOUTME: Secondary dialogue flows: feedback, profile edits, credential reset and language choice
// ABOUTME: Each flow starts from a command or menu button and ends back in idle

package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/2389/storefront-gateway/internal/auth"
	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// Callback data owned by the flows in this file.
const (
	langPrefix         = "lang:"
	feedbackTypePrefix = "fb:type:"
	cbFeedbackCancel   = "fb:cancel"
	cbResetConfirm     = "reset:confirm"
	cbResetCancel      = "reset:cancel"
)

// Continuations resumed after a language choice.
const (
	payloadContinue = "continue"
	payloadFeedback = "feedback_type"

	continueNone  = ""
	continueStart = "start"
)

var phonePattern = regexp.MustCompile(`^\+?\d{9,15}$`)

var feedbackLabels = map[string]i18n.Key{
	store.FeedbackComplaint:  i18n.FeedbackComplaint,
	store.FeedbackSuggestion: i18n.FeedbackSuggestion,
	store.FeedbackQuestion:   i18n.FeedbackQuestion,
	store.FeedbackOther:      i18n.FeedbackOther,
}

// Feedback

func (e *Engine) startFeedback(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	if err := e.setState(ctx, t, convstate.NewState(convstate.TagAwaitingFeedbackType)); err != nil {
		return err
	}
	markup := telegram.Inline(
		telegram.Row(
			telegram.CallbackButton(e.text(t, i18n.BtnComplaint), feedbackTypePrefix+store.FeedbackComplaint),
			telegram.CallbackButton(e.text(t, i18n.BtnSuggestion), feedbackTypePrefix+store.FeedbackSuggestion),
		),
		telegram.Row(
			telegram.CallbackButton(e.text(t, i18n.BtnQuestion), feedbackTypePrefix+store.FeedbackQuestion),
			telegram.CallbackButton(e.text(t, i18n.BtnOther), feedbackTypePrefix+store.FeedbackOther),
		),
		telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnCancel), cbFeedbackCancel)),
	)
	e.say(ctx, t, markup, i18n.MsgFeedbackPrompt)
	return nil
}

func (e *Engine) feedbackType(ctx context.Context, t *turn) error {
	data := t.evt.CallbackData
	if data == cbFeedbackCancel {
		return e.feedbackCancel(ctx, t)
	}
	kind := strings.TrimPrefix(data, feedbackTypePrefix)
	label, ok := feedbackLabels[kind]
	if !ok || !strings.HasPrefix(data, feedbackTypePrefix) {
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}

	next := convstate.NewState(convstate.TagAwaitingFeedbackMessage).With(payloadFeedback, kind)
	if err := e.setState(ctx, t, next); err != nil {
		return err
	}
	markup := telegram.Inline(telegram.Row(telegram.CallbackButton(e.text(t, i18n.BtnCancel), cbFeedbackCancel)))
	e.say(ctx, t, markup, i18n.MsgFeedbackChosen, e.text(t, label))
	return nil
}

func (e *Engine) feedbackMessage(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	message := strings.TrimSpace(t.evt.Text)
	if message == "" {
		return nil
	}

	fb := &store.Feedback{
		TenantID: t.tenant.ID,
		UserID:   t.user.ID,
		Type:     t.state.Value(payloadFeedback),
		Message:  message,
	}
	if _, ok := feedbackLabels[fb.Type]; !ok {
		fb.Type = store.FeedbackOther
	}
	if err := e.store.CreateFeedback(ctx, fb); err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	e.logger.Info("feedback received", "tenant_id", t.tenant.ID, "user_id", t.user.ID, "type", fb.Type)

	e.clearState(ctx, t)
	e.say(ctx, t, e.menuMarkup(t, false), i18n.MsgFeedbackThanks)
	return nil
}

func (e *Engine) feedbackCancel(ctx context.Context, t *turn) error {
	if t.evt.CallbackData != cbFeedbackCancel {
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}
	e.clearState(ctx, t)
	e.say(ctx, t, nil, i18n.MsgCancelled)
	return nil
}

// Profile

func (e *Engine) startNameEdit(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	if err := e.setState(ctx, t, convstate.NewState(convstate.TagAwaitingNewName)); err != nil {
		return err
	}
	e.say(ctx, t, nil, i18n.MsgAskNewName)
	return nil
}

func (e *Engine) newName(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	name, ok := validName(t.evt.Text)
	if !ok {
		e.say(ctx, t, nil, i18n.MsgNameInvalid, MaxNameLength)
		return nil
	}

	if err := e.store.UpdateUserName(ctx, t.user.ID, name); err != nil {
		return fmt.Errorf("updating name: %w", err)
	}
	e.recordChange(ctx, t, "full_name", t.user.FullName, name)
	t.user.FullName = name

	e.clearState(ctx, t)
	e.say(ctx, t, nil, i18n.MsgNameUpdated, richtext.Escape(name))
	return nil
}

func (e *Engine) startPhoneEdit(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	if err := e.setState(ctx, t, convstate.NewState(convstate.TagAwaitingNewPhone)); err != nil {
		return err
	}
	e.say(ctx, t, e.contactKeyboard(t), i18n.MsgAskNewPhone)
	return nil
}

func (e *Engine) newPhoneContact(ctx context.Context, t *turn) error {
	contact := t.evt.Contact
	if contact == nil || contact.UserID != t.evt.From.ID {
		e.say(ctx, t, e.contactKeyboard(t), i18n.MsgContactNotOwn)
		return nil
	}
	return e.applyPhone(ctx, t, normalizePhone(contact.PhoneNumber))
}

func (e *Engine) newPhoneText(ctx context.Context, t *turn) error {
	raw := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(t.evt.Text))
	if !phonePattern.MatchString(raw) {
		e.say(ctx, t, nil, i18n.MsgPhoneInvalid)
		return nil
	}
	return e.applyPhone(ctx, t, normalizePhone(raw))
}

func (e *Engine) applyPhone(ctx context.Context, t *turn, phone string) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	if err := e.store.UpdateUserPhone(ctx, t.user.ID, phone); err != nil {
		return fmt.Errorf("updating phone: %w", err)
	}
	e.recordChange(ctx, t, "phone", t.user.Phone, phone)
	t.user.Phone = phone

	e.clearState(ctx, t)
	e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgPhoneUpdated, richtext.Escape(phone))
	return nil
}

// recordChange appends to the profile history. The edit itself already
// succeeded, so failures are only logged.
func (e *Engine) recordChange(ctx context.Context, t *turn, field, oldValue, newValue string) {
	change := &store.ProfileChange{UserID: t.user.ID, Field: field, OldValue: oldValue, NewValue: newValue}
	if err := e.store.RecordProfileChange(ctx, change); err != nil {
		e.logger.Warn("recording profile change", "user_id", t.user.ID, "field", field, "error", err)
	}
}

// Credential reset

func (e *Engine) startReset(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	wait, err := e.cooldowns.Remaining(ctx, cooldownKey(t.tenant.ID, t.evt.From.ID))
	if err != nil {
		return fmt.Errorf("checking reset cooldown: %w", err)
	}
	if wait > 0 {
		e.say(ctx, t, nil, i18n.MsgResetWait, ceilSeconds(wait))
		return nil
	}

	if err := e.setState(ctx, t, convstate.NewState(convstate.TagAwaitingResetConfirm)); err != nil {
		return err
	}
	markup := telegram.Inline(telegram.Row(
		telegram.CallbackButton(e.text(t, i18n.BtnResetConfirm), cbResetConfirm),
		telegram.CallbackButton(e.text(t, i18n.BtnCancel), cbResetCancel),
	))
	e.say(ctx, t, markup, i18n.MsgResetConfirm)
	return nil
}

func (e *Engine) resetConfirm(ctx context.Context, t *turn) error {
	switch t.evt.CallbackData {
	case cbResetCancel:
		e.clearState(ctx, t)
		e.say(ctx, t, nil, i18n.MsgCancelled)
		return nil
	case cbResetConfirm:
	default:
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}
	if !e.requireUser(ctx, t) {
		return nil
	}

	// Consume the confirmation before anything else so a double tap resets once.
	e.clearState(ctx, t)

	key := cooldownKey(t.tenant.ID, t.evt.From.ID)
	wait, err := e.cooldowns.Remaining(ctx, key)
	if err != nil {
		return fmt.Errorf("checking reset cooldown: %w", err)
	}
	if wait > 0 {
		e.say(ctx, t, nil, i18n.MsgResetWait, ceilSeconds(wait))
		return nil
	}

	plain, hash, err := auth.NewCredential()
	if err != nil {
		return err
	}
	if err := e.store.SetPasswordHash(ctx, t.user.ID, hash); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	if err := e.cooldowns.Start(ctx, key, e.cfg.ResetCooldown); err != nil {
		e.logger.Warn("starting reset cooldown", "user_id", t.user.ID, "error", err)
	}
	e.logger.Info("credential reset", "tenant_id", t.tenant.ID, "user_id", t.user.ID)

	e.say(ctx, t, nil, i18n.MsgResetDone, richtext.Escape(t.user.Username), plain)
	return nil
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

// Language

// startLanguage opens the language namespace, leaving any dialogue state in
// place so the interrupted flow can continue afterwards.
func (e *Engine) startLanguage(ctx context.Context, t *turn, continuation string) error {
	state := convstate.NewState(convstate.TagAwaitingLanguage).With(payloadContinue, continuation)
	state.Locale = t.locale
	if err := e.states.Put(ctx, e.languageKey(t), state); err != nil {
		return fmt.Errorf("saving language state: %w", err)
	}

	rows := make([][]telegram.Button, 0, len(e.texts.Languages()))
	for _, lang := range e.texts.Languages() {
		rows = append(rows, telegram.Row(telegram.CallbackButton(lang.Name, langPrefix+lang.Code)))
	}
	e.say(ctx, t, telegram.Inline(rows...), i18n.MsgChooseLanguage)
	return nil
}

func (e *Engine) chooseLanguage(ctx context.Context, t *turn) error {
	code := strings.TrimPrefix(t.evt.CallbackData, langPrefix)
	if !e.texts.Supported(code) {
		e.ack(ctx, t, e.text(t, i18n.MsgExpired))
		return nil
	}

	langState, _, err := e.states.Get(ctx, e.languageKey(t))
	if err != nil {
		return fmt.Errorf("loading language state: %w", err)
	}
	if err := e.store.SetLocale(ctx, t.evt.From.ID, code); err != nil {
		return fmt.Errorf("saving locale preference: %w", err)
	}
	if err := e.states.Delete(ctx, e.languageKey(t)); err != nil {
		e.logger.Warn("clearing language state", "tenant_id", t.evt.TenantID, "error", err)
	}
	t.locale = code

	// A pending dialogue keeps going, now in the new language.
	if t.state.Tag != convstate.TagIdle {
		if err := e.setState(ctx, t, t.state); err != nil {
			return err
		}
	}

	name := code
	for _, lang := range e.texts.Languages() {
		if lang.Code == code {
			name = lang.Name
		}
	}
	e.say(ctx, t, nil, i18n.MsgLanguageSet, name)

	if langState.Value(payloadContinue) == continueStart {
		return e.cmdStart(ctx, t)
	}
	return nil
}
