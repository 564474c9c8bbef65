// ABOUTME: In-memory Client implementation for tests of packages that talk to bots
// ABOUTME: Records every outbound call and lets tests inject failures and polled events

package telegram

import (
	"context"
	"errors"
	"sync"
)

// SentMessage is one message recorded by FakeClient
type SentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	PhotoURL  string
	Markup    *Markup
}

// EditedMessage is one edit recorded by FakeClient
type EditedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    *Markup
}

// CallbackAnswer is one callback acknowledgement recorded by FakeClient
type CallbackAnswer struct {
	CallbackID string
	Text       string
	Alert      bool
}

// FakeClient is a thread-safe recording Client
type FakeClient struct {
	mu sync.Mutex

	Sent      []SentMessage
	Edits     []EditedMessage
	Callbacks []CallbackAnswer
	Deleted   []SentMessage

	WebhookURL    string
	WebhookSecret string
	WebhookErr    error
	// FailChats makes sends to these chats fail with the mapped error
	FailChats map[int64]error
	FailEdits error

	nextID  int
	polling bool
	events  chan Event
	stopped chan struct{}
}

var _ Client = (*FakeClient)(nil)

// NewFakeClient creates an empty FakeClient
func NewFakeClient() *FakeClient {
	return &FakeClient{
		FailChats: make(map[int64]error),
		nextID:    100,
		events:    make(chan Event, 16),
		stopped:   make(chan struct{}),
	}
}

func (f *FakeClient) send(chatID int64, text, photoURL string, markup *Markup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailChats[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.Sent = append(f.Sent, SentMessage{ChatID: chatID, MessageID: f.nextID, Text: text, PhotoURL: photoURL, Markup: markup})
	return f.nextID, nil
}

// SendText implements Client
func (f *FakeClient) SendText(_ context.Context, chatID int64, text string, markup *Markup) (int, error) {
	return f.send(chatID, text, "", markup)
}

// SendPhoto implements Client
func (f *FakeClient) SendPhoto(_ context.Context, chatID int64, photoURL, caption string, markup *Markup) (int, error) {
	return f.send(chatID, caption, photoURL, markup)
}

// EditText implements Client
func (f *FakeClient) EditText(_ context.Context, chatID int64, messageID int, text string, markup *Markup) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailEdits != nil {
		return f.FailEdits
	}
	f.Edits = append(f.Edits, EditedMessage{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

// AnswerCallback implements Client
func (f *FakeClient) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Callbacks = append(f.Callbacks, CallbackAnswer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

// DeleteMessage implements Client
func (f *FakeClient) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailChats[chatID]; err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, SentMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

// SetWebhook implements Client
func (f *FakeClient) SetWebhook(_ context.Context, url, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WebhookErr != nil {
		return f.WebhookErr
	}
	f.WebhookURL = url
	f.WebhookSecret = secret
	return nil
}

// DeleteWebhook implements Client
func (f *FakeClient) DeleteWebhook(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.WebhookURL = ""
	f.WebhookSecret = ""
	return nil
}

// Updates implements Client. Events come from Push.
func (f *FakeClient) Updates(ctx context.Context) <-chan Event {
	f.mu.Lock()
	f.polling = true
	stopped := f.stopped
	f.mu.Unlock()

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case evt := <-f.events:
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				case <-stopped:
					return
				}
			}
		}
	}()
	return out
}

// StopUpdates implements Client
func (f *FakeClient) StopUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.polling {
		f.polling = false
		close(f.stopped)
		f.stopped = make(chan struct{})
	}
}

// Polling reports whether Updates was started and not stopped
func (f *FakeClient) Polling() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polling
}

// Push queues an event for the poll loop
func (f *FakeClient) Push(evt Event) {
	f.events <- evt
}

// Messages returns a copy of every sent message
func (f *FakeClient) Messages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Sent...)
}

// MessagesTo returns the messages sent to one chat
func (f *FakeClient) MessagesTo(chatID int64) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []SentMessage
	for _, m := range f.Sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// LastTo returns the most recent message sent to chatID
func (f *FakeClient) LastTo(chatID int64) (SentMessage, bool) {
	msgs := f.MessagesTo(chatID)
	if len(msgs) == 0 {
		return SentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// EditList returns a copy of every recorded edit
func (f *FakeClient) EditList() []EditedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EditedMessage(nil), f.Edits...)
}

// CallbackList returns a copy of every recorded callback answer
func (f *FakeClient) CallbackList() []CallbackAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CallbackAnswer(nil), f.Callbacks...)
}

// DeletedList returns a copy of every recorded delete
func (f *FakeClient) DeletedList() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Deleted...)
}

// ErrFakeForbidden is a ready-made send failure for FailChats
var ErrFakeForbidden = errors.New("Forbidden: bot was blocked by the user")
