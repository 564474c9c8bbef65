// ABOUTME: Conversation state types: namespaced composite keys and closed state tags
// ABOUTME: Defines the Store and Cooldowns contracts implemented by memory and redis backends

package convstate

import (
	"context"
	"strconv"
	"time"
)

// Namespace separates independent state machines for the same user.
type Namespace string

const (
	NamespaceDialogue Namespace = "dialogue"
	NamespaceLanguage Namespace = "language"
)

// Key identifies one user's state in one chat of one tenant.
type Key struct {
	Namespace Namespace
	TenantID  string
	ChatID    int64
	UserID    int64
}

// DialogueKey is shorthand for a key in the main dialogue namespace.
func DialogueKey(tenantID string, chatID, userID int64) Key {
	return Key{Namespace: NamespaceDialogue, TenantID: tenantID, ChatID: chatID, UserID: userID}
}

// LanguageKey is shorthand for a key in the language namespace.
func LanguageKey(tenantID string, chatID, userID int64) Key {
	return Key{Namespace: NamespaceLanguage, TenantID: tenantID, ChatID: chatID, UserID: userID}
}

// String renders the key as namespace:tenant:chat:user.
func (k Key) String() string {
	return string(k.Namespace) + ":" + k.TenantID + ":" +
		strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

// Tag is the closed set of dialogue states.
type Tag string

const (
	TagIdle                    Tag = "idle"
	TagAwaitingLanguage        Tag = "awaiting_language"
	TagAwaitingContact         Tag = "awaiting_contact"
	TagAwaitingName            Tag = "awaiting_name"
	TagAwaitingLocation        Tag = "awaiting_location"
	TagAwaitingNewPhone        Tag = "awaiting_new_phone"
	TagAwaitingNewName         Tag = "awaiting_new_name"
	TagAwaitingRejectionReason Tag = "awaiting_rejection_reason"
	TagAwaitingFeedbackType    Tag = "awaiting_feedback_type"
	TagAwaitingFeedbackMessage Tag = "awaiting_feedback_message"
	TagAwaitingResetConfirm    Tag = "awaiting_reset_confirm"
)

// AllTags returns every Tag. Adding a tag means adding it here.
func AllTags() []Tag {
	return []Tag{
		TagIdle,
		TagAwaitingLanguage,
		TagAwaitingContact,
		TagAwaitingName,
		TagAwaitingLocation,
		TagAwaitingNewPhone,
		TagAwaitingNewName,
		TagAwaitingRejectionReason,
		TagAwaitingFeedbackType,
		TagAwaitingFeedbackMessage,
		TagAwaitingResetConfirm,
	}
}

// Valid reports whether t is a member of the closed set.
func (t Tag) Valid() bool {
	for _, known := range AllTags() {
		if t == known {
			return true
		}
	}
	return false
}

// State is one user's dialogue progress.
type State struct {
	Tag       Tag               `json:"tag"`
	Payload   map[string]string `json:"payload,omitempty"`
	Locale    string            `json:"locale,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewState creates a state with an empty payload.
func NewState(tag Tag) State {
	return State{Tag: tag, Payload: map[string]string{}}
}

// With returns a copy of s with key set to value.
func (s State) With(key, value string) State {
	payload := make(map[string]string, len(s.Payload)+1)
	for k, v := range s.Payload {
		payload[k] = v
	}
	payload[key] = value
	s.Payload = payload
	return s
}

// Value returns a payload entry or "".
func (s State) Value(key string) string {
	if s.Payload == nil {
		return ""
	}
	return s.Payload[key]
}

// Store persists State by Key.
type Store interface {
	// Get returns the live state and true, or false if there is none.
	Get(ctx context.Context, key Key) (State, bool, error)
	// Put overwrites the state for key.
	Put(ctx context.Context, key Key, state State) error
	// Delete removes the state for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	Close() error
}

// Cooldowns tracks rate-limit windows by opaque key.
type Cooldowns interface {
	// Remaining returns how long until key may act again, or 0.
	Remaining(ctx context.Context, key string) (time.Duration, error)
	// Start opens a window of the given length for key, replacing any existing one.
	Start(ctx context.Context, key string, window time.Duration) error
}
