package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name string
	err  error
	sent []string
}

func (s *stubSender) Send(_ context.Context, title, _ string) error {
	s.sent = append(s.sent, title)
	return s.err
}

func (s *stubSender) Name() string { return s.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &stubSender{name: "stub"}
	n := NewNotifier([]Sender{s}, []string{" order_submitted ", ""}, slog.Default())
	require.True(t, n.Enabled())

	require.NoError(t, n.Notify(context.Background(), "order_submitted", "a", "m"))
	require.NoError(t, n.Notify(context.Background(), "wallet_connected", "b", "m"))
	require.NoError(t, n.NotifyAll(context.Background(), "c", "m"))
	assert.Equal(t, []string{"a", "c"}, s.sent)
}

func TestNotifier_NoFilterAllowsAll(t *testing.T) {
	s := &stubSender{name: "stub"}
	n := NewNotifier([]Sender{s}, nil, slog.Default())
	require.NoError(t, n.Notify(context.Background(), "anything", "x", "m"))
	assert.Len(t, s.sent, 1)

	assert.False(t, NewNotifier(nil, nil, slog.Default()).Enabled())
}

func TestNotifier_JoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	bad := &stubSender{name: "bad", err: boom}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.Default())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "1 sender(s) failed")
	assert.Len(t, good.sent, 1, "later senders still run")
}

func TestTelegramSender(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat-1", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	require.NoError(t, s.Send(context.Background(), "Title", "1 < 2"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "chat-1", got.ChatID)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.Equal(t, "<b>Title</b>\n1 &lt; 2", got.Text)
	assert.Equal(t, "telegram", s.Name())
}

func TestDiscordSender(t *testing.T) {
	var got discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Title", got.Embeds[0].Title)
	assert.Equal(t, "body", got.Embeds[0].Description)
	assert.NotEmpty(t, got.Embeds[0].Timestamp)

	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer fail.Close()
	err := NewDiscordSender(fail.URL).Send(context.Background(), "t", "m")
	assert.ErrorContains(t, err, "unexpected status 429")
}

type slowSender struct{ name string }

func (s slowSender) Send(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s slowSender) Name() string { return s.name }

func TestNotifier_CancelledContextStopsSlowSenders(t *testing.T) {
	fast := &stubSender{name: "fast"}
	n := NewNotifier([]Sender{slowSender{name: "slow"}, fast}, nil, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := n.NotifyAll(ctx, "t", "m")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "slow:")
	assert.Equal(t, []string{"t"}, fast.sent)
}
