package notify

import (
	"context"
	"time"
)

// embedColor is the accent stripe of every embed (dashboard green).
const embedColor = 0x22C55E

// DiscordSender delivers notifications as embeds via a Discord webhook.
type DiscordSender struct {
	opts senderOptions
	now  func() time.Time
}

// NewDiscordSender creates a DiscordSender posting to webhookURL.
func NewDiscordSender(webhookURL string, opts ...SenderOption) *DiscordSender {
	return &DiscordSender{opts: buildSenderOptions(webhookURL, opts), now: time.Now}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordMessage struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts one embed. Discord answers 204 No Content on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, d.opts.client, "discord", d.opts.baseURL, discordMessage{
		Username: "mockexchange",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
