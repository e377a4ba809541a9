package telegram

import "gopkg.in/telebot.v3"

// Client sends messages to a Telegram chat. Admin alerts go through it so the
// app layer never holds a *telebot.Bot.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
