package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

// DefaultStreamMaxLen is the approximate stream length used when none is
// configured.
const DefaultStreamMaxLen int64 = 10000

const (
	subscribeBuffer = 128
	payloadField    = "payload"
)

// SignalBus carries dashboard snapshots over Redis. Pub/Sub backs the live
// fan-out and Streams keep a bounded replay log. Every channel and stream
// name is namespaced with prefix so several exchanges can share one server.
type SignalBus struct {
	rdb          *redis.Client
	streamMaxLen int64
	prefix       string
}

// BusOption configures a SignalBus.
type BusOption func(*SignalBus)

// WithStreamMaxLen trims streams to roughly n entries. Non-positive values
// keep DefaultStreamMaxLen.
func WithStreamMaxLen(n int64) BusOption {
	return func(sb *SignalBus) {
		if n > 0 {
			sb.streamMaxLen = n
		}
	}
}

// WithPrefix namespaces channel and stream names, e.g. "mockx:" turns
// "prices" into "mockx:prices".
func WithPrefix(prefix string) BusOption {
	return func(sb *SignalBus) { sb.prefix = prefix }
}

// NewSignalBus creates a SignalBus on top of c.
func NewSignalBus(c *Client, opts ...BusOption) *SignalBus {
	sb := &SignalBus{rdb: c.Underlying(), streamMaxLen: DefaultStreamMaxLen}
	for _, opt := range opts {
		opt(sb)
	}
	return sb
}

func (sb *SignalBus) key(name string) string {
	return sb.prefix + name
}

// Publish sends payload to the namespaced Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, sb.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on channel, which may be a glob pattern. The returned
// channel is closed once ctx is cancelled or the connection drops.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, sb.key(channel))
	} else {
		pubsub = sb.rdb.Subscribe(ctx, sb.key(channel))
	}

	// Wait for the subscribe confirmation so no publish is missed after return.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go forward(ctx, pubsub, out)
	return out, nil
}

func forward(ctx context.Context, pubsub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer pubsub.Close()

	in := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// StreamAppend appends payload to stream, trimming it approximately to the
// configured length.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: sb.key(stream),
		MaxLen: sb.streamMaxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" for the start).
// It never blocks; an empty stream yields no messages and no error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sb.key(stream), lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			if data, ok := streamPayload(msg.Values); ok {
				messages = append(messages, domain.StreamMessage{ID: msg.ID, Payload: data})
			}
		}
	}
	return messages, nil
}

// streamPayload extracts the payload field; entries written by other
// producers without it are skipped.
func streamPayload(values map[string]any) ([]byte, bool) {
	switch v := values[payloadField].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

var (
	_ domain.SignalBus = (*SignalBus)(nil)
	_ domain.StreamBus = (*SignalBus)(nil)
)
