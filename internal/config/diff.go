package config

import (
	"reflect"
	"strings"

	logx "tokenwatch/pkg/logx"
)

// Sections that a running process applies without a restart.
var liveSections = map[string]bool{
	"target":  true,
	"logging": true,
}

// Change summarizes the difference between two configs.
type Change struct {
	Sections []string // every changed top-level section, in file order
	Live     []string // subset applied on the fly
	Restart  []string // subset that needs a restart to take effect
	Fields   []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares two configs section by section. The log
// fields never contain secrets (tokens, webhook URLs, DSNs).
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, fields ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		if liveSections[section] {
			ch.Live = append(ch.Live, section)
		} else {
			ch.Restart = append(ch.Restart, section)
		}
		ch.Fields = append(ch.Fields, fields...)
	}

	if oldCfg.Target != newCfg.Target {
		mark("target", logx.String("target", newCfg.Target))
	}
	if strings.TrimSpace(oldCfg.DisplayTimezone) != strings.TrimSpace(newCfg.DisplayTimezone) {
		mark("display_timezone", logx.String("display_timezone", newCfg.DisplayTimezone))
	}
	if oldCfg.Poll != newCfg.Poll {
		mark("poll",
			logx.String("poll.interval", newCfg.Poll.Interval),
			logx.Int("poll.limit", newCfg.Poll.Limit),
			logx.Int("poll.offset", newCfg.Poll.Offset),
		)
	}
	if oldCfg.Feed != newCfg.Feed {
		mark("feed", logx.String("feed.timeout", newCfg.Feed.Timeout))
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if !reflect.DeepEqual(oldCfg.Notifiers, newCfg.Notifiers) {
		mark("notifiers",
			logx.Int("notifiers.count", len(newCfg.Notifiers)),
			logx.Strings("notifiers.names", notifierNames(newCfg.EnabledNotifiers())),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.ConsoleEnabled()),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Ops != newCfg.Ops {
		mark("ops",
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", newCfg.Ops.Addr),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
		)
	}
	return ch
}

func notifierNames(ns []NotifierConfig) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Name)
	}
	return out
}
