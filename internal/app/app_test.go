package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwatch/internal/seen"
)

const testMint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type sink struct {
	mu     sync.Mutex
	bodies []string
}

func (s *sink) add(b string) {
	s.mu.Lock()
	s.bodies = append(s.bodies, b)
	s.mu.Unlock()
}

func (s *sink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.bodies...)
}

type fixture struct {
	dir       string
	cfgPath   string
	statePath string
	webhook   *sink
}

func servePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `[{"mint":%q,"symbol":"REBA","name":"Reba Coin","freeze_authority":null},
		{"mint":"other111","symbol":"DOGE","name":"Doge Killer"}]`, testMint)
}

func newFixture(t *testing.T, target string) *fixture {
	t.Helper()
	return newFixtureWithFeed(t, target, func(w http.ResponseWriter, _ *http.Request) { servePage(w) })
}

func newFixtureWithFeed(t *testing.T, target string, feedHandler http.HandlerFunc) *fixture {
	t.Helper()
	feedSrv := httptest.NewServer(feedHandler)
	t.Cleanup(feedSrv.Close)

	wh := &sink{}
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		wh.add(string(b))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(hookSrv.Close)

	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		cfgPath:   filepath.Join(dir, "config.yaml"),
		statePath: filepath.Join(dir, "found_tokens.json"),
		webhook:   wh,
	}
	f.writeConfig(t, target, feedSrv.URL, hookSrv.URL)
	return f
}

func (f *fixture) writeConfig(t *testing.T, target, feedURL, hookURL string) {
	t.Helper()
	body := fmt.Sprintf(`target: %q
poll:
  interval: 1h
feed:
  url: %s
  timeout: 2s
storage:
  driver: file
  path: %s
notifiers:
  - name: discord-main
    type: discord
    webhook_url: %s
logging:
  level: debug
  console: false
`, target, feedURL, f.statePath, hookURL)
	require.NoError(t, os.WriteFile(f.cfgPath, []byte(body), 0o644))
}

func newApp(t *testing.T, f *fixture) *App {
	t.Helper()
	a, err := New(context.Background(), f.cfgPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOnce_NotifiesAndPersistsMatch(t *testing.T) {
	f := newFixture(t, "reba")
	a := newApp(t, f)

	require.NoError(t, a.Once(context.Background()))

	bodies := f.webhook.all()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], testMint)
	assert.True(t, a.Store().Has(testMint))
	assert.False(t, a.Store().Has("other111"))

	raw, err := os.ReadFile(f.statePath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), testMint)
}

func TestOnce_RestartDoesNotRenotify(t *testing.T) {
	f := newFixture(t, "reba")
	first := newApp(t, f)
	require.NoError(t, first.Once(context.Background()))
	require.NoError(t, first.Close())

	second := newApp(t, f)
	require.NoError(t, second.Once(context.Background()))

	assert.Len(t, f.webhook.all(), 1)
	assert.Equal(t, 1, second.Store().Len())
}

func TestNew_CorruptStateFailsStartup(t *testing.T) {
	f := newFixture(t, "reba")
	require.NoError(t, os.WriteFile(f.statePath, []byte("not json"), 0o644))

	_, err := New(context.Background(), f.cfgPath)
	require.Error(t, err)
	var ce *seen.CorruptStateError
	assert.True(t, errors.As(err, &ce), "got %v", err)
}

func TestNew_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: reba\nnotifiers: []\n"), 0o644))

	_, err := New(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one enabled notifier")

	_, err = CheckConfig(path)
	require.Error(t, err)
}

func TestRun_AnnouncesThenPollsAndStopsCleanly(t *testing.T) {
	f := newFixture(t, "reba")
	a := newApp(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.webhook.all()) >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	bodies := f.webhook.all()
	assert.Contains(t, bodies[0], "Token Monitor Started - Watching for REBA on Solana")
	assert.Contains(t, bodies[1], testMint)
}

func TestRun_WaitsForInFlightTickBeforeReturning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f := newFixtureWithFeed(t, "reba", func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(started) })
		<-release
		servePage(w)
	})
	var relOnce sync.Once
	unblock := func() { relOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	a := newApp(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick never fetched")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a tick was in flight")
	case <-time.After(200 * time.Millisecond):
	}
	unblock()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the tick finished")
	}
	assert.True(t, a.Store().Has(testMint), "the in-flight match was persisted before shutdown")
	bodies := f.webhook.all()
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[1], testMint)
}

func TestApplyConfig_TargetIsLive(t *testing.T) {
	f := newFixture(t, "reba")
	a := newApp(t, f)

	prev := a.cfgm.Get()
	next := *prev
	next.Target = "doge"
	next.Poll.Limit = 50
	a.applyConfig(prev, &next)

	assert.Equal(t, "doge", a.Loop().Target())
	assert.Zero(t, a.loop.Status().Ticks)

	require.NoError(t, a.Once(context.Background()))
	bodies := f.webhook.all()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "other111")
}

func TestValidateReload(t *testing.T) {
	f := newFixture(t, "reba")
	a := newApp(t, f)

	cfg := *a.cfgm.Get()
	require.NoError(t, validateReload(context.Background(), &cfg))

	cfg.Poll.Interval = "every tuesday"
	assert.Error(t, validateReload(context.Background(), &cfg))

	cfg = *a.cfgm.Get()
	cfg.DisplayTimezone = "Mars/Olympus"
	assert.Error(t, validateReload(context.Background(), &cfg))
}

func TestHealthReport(t *testing.T) {
	f := newFixture(t, "reba")
	a := newApp(t, f)
	require.NoError(t, a.Once(context.Background()))

	payload, ok := a.health()
	require.True(t, ok)
	r, isReport := payload.(healthReport)
	require.True(t, isReport)
	assert.Equal(t, "ok", r.Status)
	assert.Equal(t, "idle", r.State)
	assert.Equal(t, "reba", r.Target)
	assert.Equal(t, 1, r.Seen)
	assert.Equal(t, uint64(1), r.Ticks)
	assert.NotNil(t, r.LastTickAt)
	assert.Equal(t, []string{"discord-main"}, r.Channels)
	assert.True(t, strings.HasPrefix(r.Storage, "file"))
}
