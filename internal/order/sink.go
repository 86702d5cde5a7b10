package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// EventOrderSubmitted is the envelope and notification type of a submitted
// order.
const EventOrderSubmitted = "order_submitted"

// Sink receives submitted order records. Submission has no exchange-side
// effect; a Sink only reports it.
type Sink interface {
	Submit(ctx context.Context, rec domain.OrderRecord) error
}

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "order_log_sink"))}
}

// Submit logs rec.
func (s *LogSink) Submit(ctx context.Context, rec domain.OrderRecord) error {
	s.logger.InfoContext(ctx, "order submitted",
		slog.String("type", string(rec.Type)),
		slog.String("side", string(rec.Side)),
		slog.Float64("price", rec.Price),
		slog.Float64("amount", rec.Amount),
		slog.Float64("total", rec.Total),
		slog.String("slippage", rec.Slippage),
		slog.String("expiry", string(rec.Expiry)),
	)
	return nil
}

// BusSink publishes each record on the orders channel.
type BusSink struct {
	bus domain.SignalBus
}

// NewBusSink creates a BusSink.
func NewBusSink(bus domain.SignalBus) *BusSink {
	return &BusSink{bus: bus}
}

// Submit publishes rec wrapped in an envelope.
func (s *BusSink) Submit(ctx context.Context, rec domain.OrderRecord) error {
	msg, err := domain.NewEnvelope(EventOrderSubmitted, rec, rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("order: marshal record: %w", err)
	}
	if err := s.bus.Publish(ctx, domain.ChannelOrders, msg); err != nil {
		return fmt.Errorf("order: publish record: %w", err)
	}
	return nil
}

// Notifier is the subset of notify.Notifier used by NotifySink.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NotifySink forwards each record to the configured notification channels.
type NotifySink struct {
	notifier Notifier
	symbol   string
}

// NewNotifySink creates a NotifySink that labels messages with symbol.
func NewNotifySink(n Notifier, symbol string) *NotifySink {
	return &NotifySink{notifier: n, symbol: symbol}
}

// Submit sends a one-line summary of rec.
func (s *NotifySink) Submit(ctx context.Context, rec domain.OrderRecord) error {
	title := fmt.Sprintf("Mock %s order: %s", rec.Type, s.symbol)
	message := fmt.Sprintf("%s %.4f @ %.2f (total %.2f, %s, slippage %s%%)",
		rec.Side, rec.Amount, rec.Price, rec.Total, rec.Expiry, rec.Slippage)
	return s.notifier.Notify(ctx, EventOrderSubmitted, title, message)
}

// MultiSink hands every record to each of its sinks. One failing sink does
// not stop delivery to the rest; failures are joined.
type MultiSink []Sink

// Submit delivers rec to every sink.
func (m MultiSink) Submit(ctx context.Context, rec domain.OrderRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*BusSink)(nil)
	_ Sink = (*NotifySink)(nil)
	_ Sink = MultiSink(nil)
)
