// Package telegram adapts the Telegram Bot API to the gateway.
//
// # Overview
//
// Inbound updates are decoded into Event, a flat value with one Kind:
// command, text, contact, location or callback. Updates of any other shape
// (edited messages, channel posts, joins) produce no event.
//
// Outbound traffic goes through the Client interface. APIClient implements it
// on github.com/go-telegram-bot-api/telegram-bot-api/v5; tests substitute a
// recording fake. Keyboards are described with Markup so callers never build
// API types directly.
//
// All text is sent with HTML parse mode; callers escape user-supplied content.
package telegram
