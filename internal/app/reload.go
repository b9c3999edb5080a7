package app

import (
	"context"
	"fmt"
	"strings"

	"tokenwatch/internal/config"
	"tokenwatch/internal/poller"
	logx "tokenwatch/pkg/logx"
)

// validateReload rejects edits that would pass structural validation but
// could never be applied on restart.
func validateReload(_ context.Context, cfg *config.Config) error {
	if _, err := poller.ParseSchedule(cfg.Poll.Interval); err != nil {
		return fmt.Errorf("poll.interval: %w", err)
	}
	if _, err := displayLocation(cfg.DisplayTimezone); err != nil {
		return err
	}
	return nil
}

// reloadLoop applies committed config versions until ctx is done. Only
// target and logging change at runtime; everything else waits for a restart.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	applied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest version.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(applied, next)
			applied = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	ch := config.SummarizeConfigChange(prev, next)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range ch.Live {
		switch s {
		case "target":
			a.loop.SetTarget(next.Target)
			if next.Target == "" {
				a.log.Warn("target is empty; every listed asset will match")
			}
		case "logging":
			a.logs.SetSender(a.logSender(next))
			a.logs.Apply(logConfig(next))
		}
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(ch.Restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
}
