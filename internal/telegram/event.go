// ABOUTME: Inbound event model decoded from Bot API updates
// ABOUTME: Classifies each update as command, text, contact, location or callback

package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Kind classifies an inbound event
type Kind string

const (
	KindCommand  Kind = "command"
	KindText     Kind = "text"
	KindContact  Kind = "contact"
	KindLocation Kind = "location"
	KindCallback Kind = "callback"
)

// AllKinds lists every Kind
func AllKinds() []Kind {
	return []Kind{KindCommand, KindText, KindContact, KindLocation, KindCallback}
}

// User is the sender of an event
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// Contact is a shared phone contact
type Contact struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	UserID      int64 // zero when the contact is not a platform user
}

// Location is a shared map point
type Location struct {
	Lat float64
	Lng float64
}

// Event is one inbound unit of work for a tenant
type Event struct {
	TenantID  string
	UpdateID  int
	Kind      Kind
	ChatID    int64
	ChatType  string // private, group, supergroup, channel
	MessageID int
	From      User

	Text    string
	Command string // without the leading slash
	Args    string

	Contact  *Contact
	Location *Location

	CallbackID   string
	CallbackData string

	ReplyToMessageID int
}

// Private reports whether the event came from a one-to-one chat
func (e Event) Private() bool {
	return e.ChatType == "private"
}

// FromUpdate converts an update into an Event. It returns false for updates
// that carry nothing the gateway acts on.
func FromUpdate(tenantID string, u tgbotapi.Update) (Event, bool) {
	evt := Event{TenantID: tenantID, UpdateID: u.UpdateID}

	if cq := u.CallbackQuery; cq != nil {
		evt.Kind = KindCallback
		evt.CallbackID = cq.ID
		evt.CallbackData = cq.Data
		evt.From = userFrom(cq.From)
		if cq.Message != nil {
			evt.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				evt.ChatID = cq.Message.Chat.ID
				evt.ChatType = cq.Message.Chat.Type
			}
		}
		return evt, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Event{}, false
	}

	evt.ChatID = msg.Chat.ID
	evt.ChatType = msg.Chat.Type
	evt.MessageID = msg.MessageID
	evt.From = userFrom(msg.From)
	if msg.ReplyToMessage != nil {
		evt.ReplyToMessageID = msg.ReplyToMessage.MessageID
	}

	switch {
	case msg.Contact != nil:
		evt.Kind = KindContact
		evt.Contact = &Contact{
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
			UserID:      msg.Contact.UserID,
		}
	case msg.Location != nil:
		evt.Kind = KindLocation
		evt.Location = &Location{Lat: msg.Location.Latitude, Lng: msg.Location.Longitude}
	case msg.IsCommand():
		evt.Kind = KindCommand
		evt.Text = msg.Text
		evt.Command = msg.Command()
		evt.Args = msg.CommandArguments()
	case msg.Text != "":
		evt.Kind = KindText
		evt.Text = msg.Text
	default:
		return Event{}, false
	}
	return evt, true
}

func userFrom(u *tgbotapi.User) User {
	if u == nil {
		return User{}
	}
	return User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}
