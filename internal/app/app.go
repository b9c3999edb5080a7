// Package app wires configuration, storage, the feed client, notifiers and
// the poll loop into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tokenwatch/internal/config"
	"tokenwatch/internal/feed"
	"tokenwatch/internal/metrics"
	"tokenwatch/internal/notify"
	"tokenwatch/internal/observability/ops"
	"tokenwatch/internal/poller"
	"tokenwatch/internal/runtime/supervisor"
	"tokenwatch/internal/seen"
	logx "tokenwatch/pkg/logx"
	"tokenwatch/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	reg     *prometheus.Registry
	metrics *metrics.Metrics

	store      *seen.Store
	channels   map[string]notify.Channel
	dispatcher *notify.Dispatcher
	loop       *poller.Loop
	ops        *ops.Server
	sd         *systemd.Notifier

	startedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// CheckConfig parses and validates the file at path without starting anything.
func CheckConfig(path string) (*config.Config, error) {
	return config.NewConfigManager(path).Load()
}

// New loads the config at cfgPath and builds every component. The seen store
// is opened here, so a corrupt state file fails startup.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	channels, targets, err := buildChannels(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm, channels: channels, startedAt: time.Now()}
	a.logs, a.log = logx.New(logConfig(cfg), a.logSender(cfg))
	a.log = a.log.With(logx.String("comp", "app"))
	cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.reg)

	busy, err := config.DurationOr("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	a.store, err = seen.Open(ctx, seen.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, a.log)
	if err != nil {
		return nil, err
	}
	a.metrics.SetSeen(a.store.Len())

	feedTimeout, err := config.DurationOr("feed.timeout", cfg.Feed.Timeout, feed.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	fc := feed.NewClient(feed.Config{URL: cfg.Feed.URL, Timeout: feedTimeout, UserAgent: cfg.Feed.UserAgent}, feed.WithLogger(a.log))

	a.dispatcher, err = notify.NewDispatcher(a.log, a.metrics, targets...)
	if err != nil {
		return nil, err
	}

	sched, err := poller.ParseSchedule(cfg.Poll.Interval)
	if err != nil {
		return nil, fmt.Errorf("poll.interval: %w", err)
	}
	loc, err := displayLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, err
	}
	a.loop, err = poller.New(poller.Config{
		Target:   cfg.Target,
		Limit:    cfg.Poll.Limit,
		Offset:   cfg.Poll.Offset,
		Schedule: sched,
		Location: loc,
	}, fc, a.store, a.dispatcher, poller.WithLogger(a.log), poller.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}

	if cfg.Ops.Enabled {
		a.ops, err = ops.New(ops.Config{
			Addr:          cfg.Ops.Addr,
			Token:         cfg.Ops.Token,
			AllowInsecure: cfg.Ops.AllowInsecure,
		}, a.log, a.reg, a.health)
		if err != nil {
			return nil, err
		}
	}
	a.sd = systemd.New(a.log)

	if cfg.Target == "" {
		a.log.Warn("target is empty; every listed asset will match")
	}
	a.log.Info("app initialized",
		logx.String("target", cfg.Target),
		logx.String("schedule", sched.String()),
		logx.String("storage", a.store.Backend()),
		logx.Int("seen", a.store.Len()),
		logx.Strings("channels", a.dispatcher.Channels()),
	)
	ok = true
	return a, nil
}

// Loop exposes the poll loop, mainly for status reporting.
func (a *App) Loop() *poller.Loop { return a.loop }

func (a *App) Store() *seen.Store { return a.store }

// Once runs a single poll cycle.
func (a *App) Once(ctx context.Context) error {
	return a.loop.Tick(ctx)
}

// Run announces liveness, then polls until ctx is done or a task fails. It
// returns nil on a clean stop and the first task error otherwise.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetValidator(validateReload)

	target := a.loop.Target()
	sent := a.dispatcher.Announce(ctx, notify.NewLiveness(target, time.Now()))
	a.log.Info("liveness announced", logx.Int("delivered", sent), logx.Int("channels", len(a.dispatcher.Channels())))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("poller", a.loop.Run)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	if a.ops != nil {
		a.sup.Go("ops", a.ops.Serve)
	}
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return a.sd.RunWatchdog(c, a.healthy)
	})

	a.sd.Ready("watching for " + displayTarget(target))
	a.log.Info("app started")

	<-a.sup.Context().Done()
	a.sd.Stopping()
	err := a.sup.Err()
	if err != nil {
		a.log.Error("stopping after task failure", logx.Err(err))
	} else {
		a.log.Info("stopping")
	}

	// An in-flight tick finishes before the store can be closed. Its fetch,
	// persist and sends each carry their own timeout, so this wait is bounded.
	if st := a.loop.State(); st == poller.Ticking {
		a.log.Info("waiting for in-flight tick")
	}
	_ = a.sup.Wait(context.Background())
	return err
}

// Close releases the store and log sinks. Safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}
		if a.logs != nil {
			a.log.Info("stopped")
			if err := a.logs.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close logs: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func buildChannels(cfg *config.Config) (map[string]notify.Channel, []notify.Target, error) {
	byName := map[string]notify.Channel{}
	var targets []notify.Target
	for i, n := range cfg.EnabledNotifiers() {
		timeout, err := config.DurationOr(fmt.Sprintf("notifiers[%d].timeout", i), n.Timeout, notify.DefaultTimeout)
		if err != nil {
			return nil, nil, err
		}
		ch, err := notify.NewChannel(notify.ChannelConfig{
			Name:       n.Name,
			Type:       n.Type,
			WebhookURL: n.WebhookURL,
			Username:   n.Username,
			Token:      n.Token,
			ChatID:     n.ChatID,
			ThreadID:   n.ThreadID,
			APIURL:     n.APIURL,
			Timeout:    timeout,
			RatePerSec: n.RatePerSec,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("notifier %s: %w", n.Name, err)
		}
		byName[ch.Name()] = ch
		targets = append(targets, notify.Target{Channel: ch, RatePerSec: n.RatePerSec, Timeout: timeout})
	}
	return byName, targets, nil
}

// logSender resolves the chat transport for forwarded log lines.
func (a *App) logSender(cfg *config.Config) logx.Sender {
	if !cfg.Logging.Telegram.Enabled {
		return nil
	}
	nc, ok := cfg.LogNotifier()
	if !ok {
		return nil
	}
	tg, ok := a.channels[nc.Name].(*notify.Telegram)
	if !ok {
		return nil
	}
	return tg.LogSender(cfg.Logging.Telegram.ChatID, cfg.Logging.Telegram.ThreadID)
}

func logConfig(cfg *config.Config) logx.Config {
	lg := cfg.Logging
	return logx.Config{
		Level:   lg.Level,
		Console: lg.ConsoleEnabled(),
		File:    logx.FileConfig{Enabled: lg.File.Enabled, Path: lg.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    lg.Telegram.Enabled,
			MinLevel:   lg.Telegram.MinLevel,
			RatePerSec: lg.Telegram.RatePerSec,
		},
	}
}

func displayLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("display_timezone: %w", err)
	}
	return loc, nil
}

func displayTarget(target string) string {
	if target == "" {
		return "any asset"
	}
	return strings.ToUpper(target)
}
