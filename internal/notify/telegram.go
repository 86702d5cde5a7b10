package notify

import (
	"context"
	"fmt"
	"html"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	token  string
	chatID string
	opts   senderOptions
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID.
func NewTelegramSender(token, chatID string, opts ...SenderOption) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		opts:   buildSenderOptions(telegramAPI, opts),
	}
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send posts a message to the configured chat. The title is bold; both parts
// are HTML-escaped since symbols like "ETH/USDT" and "<" reach the text as is.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.opts.baseURL, t.token)
	return postJSON(ctx, t.opts.client, "telegram", url, telegramMessage{
		ChatID:                t.chatID,
		Text:                  fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(message)),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
