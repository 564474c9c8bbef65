// ABOUTME: Outbound Bot API client interface and its go-telegram-bot-api implementation
// ABOUTME: Covers sends, edits, callback acks, deletes, webhook registration and long polling

package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client sends to and receives from one bot
type Client interface {
	// SendText sends an HTML message and returns its message id
	SendText(ctx context.Context, chatID int64, text string, markup *Markup) (int, error)
	// SendPhoto sends a photo by URL with an HTML caption and returns its message id
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, markup *Markup) (int, error)
	// EditText replaces a message's text and inline keyboard
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *Markup) error
	// AnswerCallback acknowledges a button press, optionally as an alert
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// SetWebhook switches the bot to push delivery at url; secret is echoed
	// back by the platform in the secret token header
	SetWebhook(ctx context.Context, url, secret string) error
	// DeleteWebhook switches the bot back to pull delivery
	DeleteWebhook(ctx context.Context) error
	// Updates starts long polling. The channel closes after StopUpdates or ctx ends.
	Updates(ctx context.Context) <-chan Event
	StopUpdates()
}

// ErrClosed is returned when a request is made after the context is done
var ErrClosed = errors.New("telegram client closed")

// DefaultTimeout bounds every Bot API request, long polls included
const DefaultTimeout = 45 * time.Second

const pollTimeoutSeconds = 30

// APIClient implements Client using go-telegram-bot-api
type APIClient struct {
	bot      *tgbotapi.BotAPI
	stopOnce sync.Once
}

var _ Client = (*APIClient)(nil)

// Dial authenticates token against the Bot API. endpoint may be empty for the
// public API, or a format string with two %s verbs (token, method).
func Dial(token, endpoint string, httpClient *http.Client) (*APIClient, error) {
	if token == "" {
		return nil, errors.New("bot token is empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("authenticating bot: %w", err)
	}
	return &APIClient{bot: bot}, nil
}

// Username returns the bot's own handle
func (c *APIClient) Username() string {
	return c.bot.Self.UserName
}

// SendText implements Client
func (c *APIClient) SendText(ctx context.Context, chatID int64, text string, markup *Markup) (int, error) {
	if ctx.Err() != nil {
		return 0, ErrClosed
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if rm := markup.apiMarkup(); rm != nil {
		msg.ReplyMarkup = rm
	}

	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("sending message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendPhoto implements Client
func (c *APIClient) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, markup *Markup) (int, error) {
	if ctx.Err() != nil {
		return 0, ErrClosed
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if rm := markup.apiMarkup(); rm != nil {
		photo.ReplyMarkup = rm
	}

	sent, err := c.bot.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("sending photo to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// EditText implements Client
func (c *APIClient) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *Markup) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if inline := markup.inlineMarkup(); inline != nil {
		edit.ReplyMarkup = inline
	} else {
		// an empty keyboard clears buttons once no action is left
		edit.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}

	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("editing message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback implements Client
func (c *APIClient) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := c.bot.Request(cb); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// DeleteMessage implements Client
func (c *APIClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	if _, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("deleting message %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// SetWebhook implements Client
func (c *APIClient) SetWebhook(ctx context.Context, url, secret string) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	if _, err := c.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	return nil
}

// DeleteWebhook implements Client
func (c *APIClient) DeleteWebhook(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return nil
}

// Updates implements Client
func (c *APIClient) Updates(ctx context.Context) <-chan Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := c.bot.GetUpdatesChan(cfg)

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.StopUpdates()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				evt, ok := FromUpdate("", u)
				if !ok {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					c.StopUpdates()
					return
				}
			}
		}
	}()
	return out
}

// StopUpdates implements Client. Safe to call more than once.
func (c *APIClient) StopUpdates() {
	c.stopOnce.Do(c.bot.StopReceivingUpdates)
}

// IsForbidden reports whether err means the recipient blocked the bot or left the chat
func IsForbidden(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusForbidden
	}
	return false
}
