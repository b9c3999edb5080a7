package systemd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tokenwatch/pkg/logx"
)

type recorder struct {
	mu     sync.Mutex
	states []string
}

func (r *recorder) notify(state string) (bool, error) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
	return true, nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func newTestNotifier(r *recorder, wd time.Duration) *Notifier {
	n := New(logx.Nop())
	n.notify = r.notify
	n.watchdog = func() (time.Duration, error) { return wd, nil }
	return n
}

func TestReadyAndStopping(t *testing.T) {
	r := &recorder{}
	n := newTestNotifier(r, 0)

	n.Ready("watching reba")
	n.Stopping()

	assert.Equal(t, []string{"READY=1\nSTATUS=watching reba", "STOPPING=1"}, r.snapshot())
}

func TestRunWatchdogDisabledReturnsImmediately(t *testing.T) {
	n := newTestNotifier(&recorder{}, 0)
	done := make(chan error, 1)
	go func() { done <- n.RunWatchdog(context.Background(), nil) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunWatchdog blocked without a watchdog interval")
	}
}

func TestRunWatchdogPingsWhileHealthy(t *testing.T) {
	r := &recorder{}
	n := newTestNotifier(r, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.RunWatchdog(ctx, func() bool { return true }) }()

	require.Eventually(t, func() bool { return len(r.snapshot()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	for _, s := range r.snapshot() {
		assert.Equal(t, "WATCHDOG=1", s)
	}
}

func TestRunWatchdogSkipsWhenUnhealthy(t *testing.T) {
	r := &recorder{}
	n := newTestNotifier(r, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, n.RunWatchdog(ctx, func() bool { return false }))
	assert.Empty(t, r.snapshot())
}
