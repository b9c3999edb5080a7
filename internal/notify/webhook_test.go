package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwatch/internal/feed"
)

type capture struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
}

func newWebhookServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, b)
		c.mu.Unlock()
		w.WriteHeader(c.status)
		if c.status >= 400 {
			_, _ = w.Write([]byte(`{"message":"Unknown Webhook"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func (c *capture) last(t *testing.T, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.bodies)
	require.NoError(t, json.Unmarshal(c.bodies[len(c.bodies)-1], v))
}

func sampleAlert(freeze bool) Alert {
	return NewAlert(feed.Record{Identity: testMint, Symbol: "REBA", Name: "Reba Token", HasFreezeAuthority: freeze},
		"reba", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), nil)
}

func TestDiscord_AlertPayload(t *testing.T) {
	srv, cap := newWebhookServer(t, http.StatusNoContent)
	d, err := NewDiscord("discord", srv.URL, "", srv.Client())
	require.NoError(t, err)

	require.NoError(t, d.Notify(context.Background(), sampleAlert(false)))

	var msg discordMessage
	cap.last(t, &msg)
	assert.Equal(t, "🔔 **REBA TOKEN DETECTED!** 🔔", msg.Content)
	assert.Equal(t, DisplayName, msg.Username)
	require.Len(t, msg.Embeds, 1)
	e := msg.Embeds[0]
	assert.Equal(t, "🚨 New Token Alert: $REBA", e.Title)
	assert.Equal(t, discordGreen, e.Color)
	assert.Equal(t, DisplayName, e.Footer.Text)
	assert.Equal(t, "2026-03-01T12:00:00Z", e.Timestamp)
	require.Len(t, e.Fields, 5)
	assert.Equal(t, testMint, e.Fields[2].Value)
	assert.Contains(t, e.Fields[4].Value, "https://solscan.io/token/"+testMint)
}

func TestDiscord_FreezeWarningOnlyWhenFlagged(t *testing.T) {
	srv, cap := newWebhookServer(t, http.StatusNoContent)
	d, err := NewDiscord("discord", srv.URL, "bot", srv.Client())
	require.NoError(t, err)

	require.NoError(t, d.Notify(context.Background(), sampleAlert(true)))
	var msg discordMessage
	cap.last(t, &msg)
	fields := msg.Embeds[0].Fields
	require.Len(t, fields, 6)
	assert.Equal(t, FreezeWarningTitle, fields[5].Name)
	assert.Equal(t, FreezeWarningText, fields[5].Value)
}

func TestDiscord_Announce(t *testing.T) {
	srv, cap := newWebhookServer(t, http.StatusNoContent)
	d, err := NewDiscord("discord", srv.URL, "", srv.Client())
	require.NoError(t, err)

	require.NoError(t, d.Announce(context.Background(), NewLiveness("reba", time.Now())))
	var msg discordMessage
	cap.last(t, &msg)
	assert.Contains(t, msg.Content, "Token Monitor Started - Watching for REBA on Solana")
	assert.Empty(t, msg.Embeds)
}

func TestDiscord_Non2xxIsSendError(t *testing.T) {
	srv, _ := newWebhookServer(t, http.StatusNotFound)
	d, err := NewDiscord("discord-main", srv.URL, "", srv.Client())
	require.NoError(t, err)

	err = d.Notify(context.Background(), sampleAlert(false))
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "discord-main", se.Channel)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, se.Body, "Unknown Webhook")
}

func TestDiscord_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d, err := NewDiscord("discord", url, "", &http.Client{Timeout: time.Second})
	require.NoError(t, err)
	err = d.Notify(context.Background(), sampleAlert(false))
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, se.Status)
}

func TestNewDiscord_RejectsBadURL(t *testing.T) {
	_, err := NewDiscord("d", "not a url", "", nil)
	require.Error(t, err)
	_, err = NewDiscord("d", "", "", nil)
	require.Error(t, err)
}

func TestSlack_AlertText(t *testing.T) {
	srv, cap := newWebhookServer(t, http.StatusOK)
	s, err := NewSlack("slack", srv.URL, "", srv.Client())
	require.NoError(t, err)

	require.NoError(t, s.Notify(context.Background(), sampleAlert(false)))
	var msg slackMessage
	cap.last(t, &msg)
	assert.Contains(t, msg.Text, "*REBA TOKEN DETECTED!*")
	assert.Contains(t, msg.Text, "`"+testMint+"`")
	assert.Contains(t, msg.Text, "<https://explorer.solana.com/address/"+testMint+"|View on Solana Explorer>")
	assert.NotContains(t, msg.Text, FreezeWarningText)

	require.NoError(t, s.Notify(context.Background(), sampleAlert(true)))
	cap.last(t, &msg)
	assert.Contains(t, msg.Text, FreezeWarningText)
}

func TestSlack_EscapesUserText(t *testing.T) {
	a := NewAlert(feed.Record{Identity: testMint, Symbol: "<b>&", Name: "x"}, "b", time.Now(), nil)
	assert.Contains(t, slackAlertText(a), "$&lt;b&gt;&amp;")
}
