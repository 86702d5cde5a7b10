package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// EventClipboard is the envelope type asking a view to copy text.
const EventClipboard = "clipboard"

// ClipboardPayload is the body of a clipboard envelope.
type ClipboardPayload struct {
	Text string `json:"text"`
}

// LogClipboard logs copied text. Used in headless mode.
type LogClipboard struct {
	logger *slog.Logger
}

// NewLogClipboard creates a LogClipboard.
func NewLogClipboard(logger *slog.Logger) *LogClipboard {
	return &LogClipboard{logger: logger.With(slog.String("component", "clipboard"))}
}

// Copy logs text.
func (c *LogClipboard) Copy(ctx context.Context, text string) error {
	c.logger.InfoContext(ctx, "copied to clipboard", slog.String("text", text))
	return nil
}

// BusClipboard asks the connected views to copy text by publishing a
// clipboard envelope on the wallet channel.
type BusClipboard struct {
	bus domain.SignalBus
	now func() time.Time
}

// NewBusClipboard creates a BusClipboard.
func NewBusClipboard(bus domain.SignalBus) *BusClipboard {
	return &BusClipboard{bus: bus, now: time.Now}
}

// Copy publishes text on the wallet channel.
func (c *BusClipboard) Copy(ctx context.Context, text string) error {
	msg, err := domain.NewEnvelope(EventClipboard, ClipboardPayload{Text: text}, c.now())
	if err != nil {
		return fmt.Errorf("wallet: marshal clipboard: %w", err)
	}
	if err := c.bus.Publish(ctx, domain.ChannelWallet, msg); err != nil {
		return fmt.Errorf("wallet: publish clipboard: %w", err)
	}
	return nil
}

var (
	_ Clipboard = (*LogClipboard)(nil)
	_ Clipboard = (*BusClipboard)(nil)
)
