package memory

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return nil
	}
}

func assertNothing(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestBus_ExactAndPattern(t *testing.T) {
	b := New(slog.Default())
	ctx := context.Background()

	prices, err := b.Subscribe(ctx, "prices")
	require.NoError(t, err)
	all, err := b.Subscribe(ctx, "*")
	require.NoError(t, err)
	tr, err := b.Subscribe(ctx, "tr*")
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "prices", []byte("p1")))
	assert.Equal(t, "p1", string(recv(t, prices)))
	assert.Equal(t, "p1", string(recv(t, all)))
	assertNothing(t, tr)

	require.NoError(t, b.Publish(ctx, "trades", []byte("t1")))
	assert.Equal(t, "t1", string(recv(t, tr)))
	assert.Equal(t, "t1", string(recv(t, all)))
	assertNothing(t, prices)
}

func TestBus_PayloadIsCopied(t *testing.T) {
	b := New(slog.Default())
	ch, err := b.Subscribe(context.Background(), "book")
	require.NoError(t, err)

	payload := []byte("abc")
	require.NoError(t, b.Publish(context.Background(), "book", payload))
	payload[0] = 'x'
	assert.Equal(t, "abc", string(recv(t, ch)))
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New(slog.Default())
	b.buffer = 1
	ch, err := b.Subscribe(context.Background(), "chart")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "chart", []byte("1")))
	require.NoError(t, b.Publish(context.Background(), "chart", []byte("2")))
	assert.Equal(t, "1", string(recv(t, ch)))
	assertNothing(t, ch)
}

func TestBus_CancelAndClose(t *testing.T) {
	b := New(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "wallet")
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	other, err := b.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	_, ok := <-other
	assert.False(t, ok)

	late, err := b.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
	assert.NoError(t, b.Publish(context.Background(), "orders", []byte("x")))
}
