// ABOUTME: Keyboard descriptions for outbound messages
// ABOUTME: Converts inline, reply, remove and force-reply markup into Bot API types

package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one keyboard button. Inline buttons use Data or URL; reply
// buttons may request the user's contact or location.
type Button struct {
	Text            string
	Data            string
	URL             string
	RequestContact  bool
	RequestLocation bool
}

// CallbackButton is an inline button that sends data back as a callback
func CallbackButton(text, data string) Button {
	return Button{Text: text, Data: data}
}

// URLButton is an inline button that opens a link
func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// ContactButton is a reply button that shares the user's phone number
func ContactButton(text string) Button {
	return Button{Text: text, RequestContact: true}
}

// LocationButton is a reply button that shares the user's location
func LocationButton(text string) Button {
	return Button{Text: text, RequestLocation: true}
}

// Row groups buttons into one keyboard row
func Row(buttons ...Button) []Button {
	return buttons
}

// Markup describes the keyboard attached to a message. At most one of
// Inline, Reply, RemoveKeyboard and ForceReply is used, in that order.
type Markup struct {
	Inline         [][]Button
	Reply          [][]Button
	RemoveKeyboard bool
	ForceReply     bool
	Placeholder    string
}

// Inline builds an inline keyboard
func Inline(rows ...[]Button) *Markup {
	return &Markup{Inline: rows}
}

// ReplyKeyboard builds a one-time reply keyboard
func ReplyKeyboard(rows ...[]Button) *Markup {
	return &Markup{Reply: rows}
}

// RemoveKeyboard hides a previously shown reply keyboard
func RemoveKeyboard() *Markup {
	return &Markup{RemoveKeyboard: true}
}

// ForceReply asks the client to open a reply to the message
func ForceReply(placeholder string) *Markup {
	return &Markup{ForceReply: true, Placeholder: placeholder}
}

// inlineMarkup returns the inline keyboard, or nil when m has none
func (m *Markup) inlineMarkup() *tgbotapi.InlineKeyboardMarkup {
	if m == nil || len(m.Inline) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Inline))
	for _, r := range m.Inline {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			if b.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, row)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// apiMarkup converts m into a value for a message's reply_markup
func (m *Markup) apiMarkup() any {
	if m == nil {
		return nil
	}
	if inline := m.inlineMarkup(); inline != nil {
		return *inline
	}
	if len(m.Reply) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Reply))
		for _, r := range m.Reply {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, b := range r {
				switch {
				case b.RequestContact:
					row = append(row, tgbotapi.NewKeyboardButtonContact(b.Text))
				case b.RequestLocation:
					row = append(row, tgbotapi.NewKeyboardButtonLocation(b.Text))
				default:
					row = append(row, tgbotapi.NewKeyboardButton(b.Text))
				}
			}
			rows = append(rows, row)
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = true
		return kb
	}
	if m.RemoveKeyboard {
		return tgbotapi.NewRemoveKeyboard(false)
	}
	if m.ForceReply {
		return tgbotapi.ForceReply{ForceReply: true, Selective: true, InputFieldPlaceholder: m.Placeholder}
	}
	return nil
}
