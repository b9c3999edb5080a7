package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type botAPI struct {
	mu    sync.Mutex
	sent  []map[string]string
	fail  bool
	token string
}

func newBotAPI(t *testing.T, token string, fail bool) (*httptest.Server, *botAPI) {
	t.Helper()
	api := &botAPI{token: token, fail: fail}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+token+"/sendMessage", r.URL.Path)
		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		got := map[string]string{}
		for k, v := range raw {
			got[k] = fmt.Sprint(v)
		}
		api.mu.Lock()
		api.sent = append(api.sent, got)
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if api.fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100123,"type":"supergroup"}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, api
}

func (a *botAPI) messages() []map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]string(nil), a.sent...)
}

func TestTelegram_Notify(t *testing.T) {
	srv, api := newBotAPI(t, "123:abc", false)
	tg, err := NewTelegram(TelegramConfig{Name: "tg", Token: "123:abc", ChatID: -100123, APIURL: srv.URL, Client: srv.Client()})
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), sampleAlert(true)))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "-100123", msgs[0]["chat_id"])
	assert.Equal(t, "HTML", msgs[0]["parse_mode"])
	assert.Contains(t, msgs[0]["text"], "<b>REBA TOKEN DETECTED!</b>")
	assert.Contains(t, msgs[0]["text"], "<code>"+testMint+"</code>")
	assert.Contains(t, msgs[0]["text"], FreezeWarningText)
}

func TestTelegram_NoFreezeWarningUnlessFlagged(t *testing.T) {
	assert.NotContains(t, telegramAlertHTML(sampleAlert(false)), FreezeWarningText)
}

func TestTelegram_APIErrorIsSendError(t *testing.T) {
	srv, _ := newBotAPI(t, "123:abc", true)
	tg, err := NewTelegram(TelegramConfig{Name: "tg", Token: "123:abc", ChatID: 1, APIURL: srv.URL, Client: srv.Client()})
	require.NoError(t, err)

	err = tg.Announce(context.Background(), NewLiveness("reba", time.Now()))
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "tg", se.Channel)
}

func TestTelegram_LogSenderUsesOverrideChat(t *testing.T) {
	srv, api := newBotAPI(t, "123:abc", false)
	tg, err := NewTelegram(TelegramConfig{Name: "tg", Token: "123:abc", ChatID: 1, APIURL: srv.URL, Client: srv.Client()})
	require.NoError(t, err)

	require.NoError(t, tg.LogSender(42, 7).SendLog(context.Background(), "WRN feed down"))
	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0]["chat_id"])
	assert.Equal(t, "7", msgs[0]["message_thread_id"])
	assert.Equal(t, "WRN feed down", msgs[0]["text"])
}

func TestNewTelegram_Validation(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{Name: "tg", ChatID: 1})
	require.Error(t, err)
	_, err = NewTelegram(TelegramConfig{Name: "tg", Token: "x"})
	require.Error(t, err)
}

func TestSplitTelegramText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitTelegramText("short", 10, false))

	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	assert.Equal(t, []string{strings.Repeat("a", 8), strings.Repeat("b", 8)}, splitTelegramText(long, 10, false))

	chunks := splitTelegramText("abcdef<b>bold</b>", 8, true)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcdef", chunks[0])
}
