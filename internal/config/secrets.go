package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// Redacted returns a copy of the configuration that is safe to log: secrets
// are masked, webhook URLs keep only their scheme and host, and slices are
// cloned so the copy cannot alias the original.
func (c Config) Redacted() Config {
	out := c
	out.Redis.Password = mask(c.Redis.Password)
	out.Notify.TelegramToken = mask(c.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = maskURL(c.Notify.DiscordWebhookURL)
	out.Notify.Events = slices.Clone(c.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(c.Server.CORSOrigins)
	return out
}

// mask hides a non-empty secret. Empty values stay empty so the log still
// shows what is unset.
func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// maskURL keeps scheme and host of a URL whose path carries a secret.
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
