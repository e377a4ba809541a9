package telegram

import (
	"unicode/utf8"

	"gopkg.in/telebot.v3"
)

// Telegram rejects longer message texts.
const maxMessageLength = 4096

// TelebotAdapter implements the domain Client interface on top of telebot.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage posts text to a chat. The admin chat may be a group, so the id
// is a chat id rather than a user id. Overlong text is cut to the limit.
func (a *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{DisableWebPagePreview: true}
	}
	_, err := a.bot.Send(telebot.ChatID(chatID), truncate(text, maxMessageLength), options)
	return err
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const ellipsis = "…"
	runes := []rune(s)
	return string(runes[:limit-1]) + ellipsis
}
