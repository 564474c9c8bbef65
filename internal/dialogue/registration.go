// ABOUTME: Registration flow: contact, then name, then location checked against zone and hours
// ABOUTME: Also the idle delivery check for registered users sharing a new location

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/2389/storefront-gateway/internal/auth"
	"github.com/2389/storefront-gateway/internal/convstate"
	"github.com/2389/storefront-gateway/internal/geofence"
	"github.com/2389/storefront-gateway/internal/i18n"
	"github.com/2389/storefront-gateway/internal/richtext"
	"github.com/2389/storefront-gateway/internal/store"
	"github.com/2389/storefront-gateway/internal/telegram"
)

// MaxNameLength bounds display names in runes.
const MaxNameLength = 64

// Payload keys carried between registration steps.
const (
	payloadPhone = "phone"
	payloadName  = "full_name"
)

func (e *Engine) registrationContact(ctx context.Context, t *turn) error {
	contact := t.evt.Contact
	if contact == nil || contact.UserID != t.evt.From.ID {
		e.say(ctx, t, e.contactKeyboard(t), i18n.MsgContactNotOwn)
		return nil
	}

	next := convstate.NewState(convstate.TagAwaitingName).With(payloadPhone, normalizePhone(contact.PhoneNumber))
	if err := e.setState(ctx, t, next); err != nil {
		return err
	}
	e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgContactThanks)
	return nil
}

func (e *Engine) remindContact(ctx context.Context, t *turn) error {
	e.say(ctx, t, e.contactKeyboard(t), i18n.MsgUseButtons)
	return nil
}

func (e *Engine) registrationName(ctx context.Context, t *turn) error {
	name, ok := validName(t.evt.Text)
	if !ok {
		e.say(ctx, t, nil, i18n.MsgNameInvalid, MaxNameLength)
		return nil
	}

	next := t.state.With(payloadName, name)
	next.Tag = convstate.TagAwaitingLocation
	if err := e.setState(ctx, t, next); err != nil {
		return err
	}
	e.say(ctx, t, e.locationKeyboard(t), i18n.MsgNiceToMeet, richtext.Escape(name))
	return nil
}

func (e *Engine) registrationLocation(ctx context.Context, t *turn) error {
	point := geofence.Point{Lat: t.evt.Location.Lat, Lng: t.evt.Location.Lng}
	if !e.serviceable(ctx, t, point) {
		e.clearState(ctx, t)
		return nil
	}

	username := t.evt.From.Username
	if username == "" {
		username = auth.FallbackUsername(t.evt.From.ID)
	}
	user, err := e.register(ctx, t, username, point)
	if err != nil {
		return err
	}
	t.user = user

	if err := e.store.SetLocale(ctx, t.evt.From.ID, t.locale); err != nil {
		e.logger.Warn("saving locale preference", "tenant_id", t.evt.TenantID, "error", err)
	}
	e.clearState(ctx, t)

	e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgRegistered, richtext.Escape(t.tenant.Name))
	e.say(ctx, t, e.menuMarkup(t, true), i18n.MsgMenu, richtext.Escape(t.tenant.Name))
	return nil
}

// register creates the account. A concurrent registration of the same
// platform user wins and is reused; a taken handle falls back to the
// generated username.
func (e *Engine) register(ctx context.Context, t *turn, username string, point geofence.Point) (*store.User, error) {
	_, hash, err := auth.NewCredential()
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		user := &store.User{
			TelegramID:   t.evt.From.ID,
			Username:     username,
			FullName:     t.state.Value(payloadName),
			Phone:        t.state.Value(payloadPhone),
			PasswordHash: hash,
			Active:       true,
			LastLocation: &point,
		}
		err = e.store.RegisterUser(ctx, user, t.tenant.ID)
		if err == nil {
			e.logger.Info("registered customer", "tenant_id", t.tenant.ID, "user_id", user.ID)
			return user, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("registering account: %w", err)
		}

		existing, lookupErr := e.store.GetUserByTelegramID(ctx, t.evt.From.ID)
		if lookupErr == nil {
			if err := e.store.LinkUserTenant(ctx, existing.ID, t.tenant.ID); err != nil {
				return nil, fmt.Errorf("linking user to tenant: %w", err)
			}
			return existing, nil
		}
		if !errors.Is(lookupErr, store.ErrNotFound) {
			return nil, fmt.Errorf("loading account after conflict: %w", lookupErr)
		}
		username = auth.FallbackUsername(t.evt.From.ID)
	}
	return nil, fmt.Errorf("registering account: %w", err)
}

// checkDelivery answers a location shared outside of registration.
func (e *Engine) checkDelivery(ctx context.Context, t *turn) error {
	if !e.requireUser(ctx, t) {
		return nil
	}
	point := geofence.Point{Lat: t.evt.Location.Lat, Lng: t.evt.Location.Lng}
	if !e.serviceable(ctx, t, point) {
		return nil
	}

	if err := e.store.SetLastLocation(ctx, t.user.ID, point); err != nil {
		return fmt.Errorf("saving location: %w", err)
	}
	if err := e.activateTenant(ctx, t); err != nil {
		return err
	}
	e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgDeliveryOK, richtext.Escape(t.tenant.Name))
	e.say(ctx, t, e.menuMarkup(t, false), i18n.MsgMenu, richtext.Escape(t.tenant.Name))
	return nil
}

// serviceable checks the delivery zone and opening hours, explaining a
// rejection to the user. Misconfigured hours count as always open.
func (e *Engine) serviceable(ctx context.Context, t *turn, point geofence.Point) bool {
	name := richtext.Escape(t.tenant.Name)
	if !geofence.IsInZone(point, t.tenant.DeliveryZone) {
		e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgOutOfZone, name)
		return false
	}

	hours, err := t.tenant.Hours()
	if err != nil {
		e.logger.Warn("tenant hours misconfigured", "tenant_id", t.tenant.ID, "error", err)
		return true
	}
	open, err := hours.OpenAt(e.now())
	if err != nil {
		e.logger.Warn("evaluating tenant hours", "tenant_id", t.tenant.ID, "error", err)
		return true
	}
	if !open {
		e.say(ctx, t, telegram.RemoveKeyboard(), i18n.MsgClosed, name, hours.Open, hours.Close)
		return false
	}
	return true
}

func validName(raw string) (string, bool) {
	name := strings.Join(strings.Fields(raw), " ")
	n := utf8.RuneCountInString(name)
	return name, n >= 1 && n <= MaxNameLength
}

// normalizePhone keeps digits and prefixes "+" as contacts arrive with or
// without it.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// cooldownKey scopes the reset window to one user in one tenant.
func cooldownKey(tenantID string, telegramID int64) string {
	return "reset:" + tenantID + ":" + strconv.FormatInt(telegramID, 10)
}
