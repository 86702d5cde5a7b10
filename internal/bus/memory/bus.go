// Package memory provides an in-process SignalBus for single-instance runs
// where no Redis is configured.
package memory

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// DefaultBuffer matches the per-subscription buffer of the Redis bus.
const DefaultBuffer = 128

type subscription struct {
	pattern string
	ch      chan []byte
}

// Bus fans published payloads out to every matching subscription. Channel
// names containing '*', '?' or '[' are treated as glob patterns, the same way
// the Redis bus switches to PSUBSCRIBE. A subscriber whose buffer is full
// misses the message.
type Bus struct {
	mu     sync.RWMutex
	next   int
	subs   map[int]*subscription
	buffer int
	closed bool
	logger *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscription),
		buffer: DefaultBuffer,
		logger: logger.With(slog.String("component", "memory_bus")),
	}
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func (s *subscription) matches(channel string) bool {
	if !isPattern(s.pattern) {
		return s.pattern == channel
	}
	ok, err := path.Match(s.pattern, channel)
	return err == nil && ok
}

// Publish delivers payload to every subscription matching channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if !s.matches(channel) {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
			b.logger.DebugContext(ctx, "subscriber full, message dropped",
				slog.String("channel", channel),
				slog.String("pattern", s.pattern),
			)
		}
	}
	return nil
}

// Subscribe registers a subscription that lives until ctx is cancelled or
// the bus is closed; the returned channel is closed then.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch := make(chan []byte)
		close(ch)
		return ch, nil
	}
	id := b.next
	b.next++
	s := &subscription{pattern: channel, ch: make(chan []byte, b.buffer)}
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(id)
	}()
	return s.ch, nil
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

// Close closes every subscription. Later subscriptions are closed
// immediately.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
	return nil
}

var _ domain.SignalBus = (*Bus)(nil)
