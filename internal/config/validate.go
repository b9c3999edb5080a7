package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	logx "tokenwatch/pkg/logx"
)

const maxFeedLimit = 100

// Validate checks the structural rules every config must satisfy. It reports
// all problems at once, each prefixed with its field path.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if tz := strings.TrimSpace(cfg.DisplayTimezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add("display_timezone: %v", err)
		}
	}

	if cfg.Poll.Limit < 1 || cfg.Poll.Limit > maxFeedLimit {
		add("poll.limit: must be between 1 and %d", maxFeedLimit)
	}
	if cfg.Poll.Offset < 0 {
		add("poll.offset: must be >= 0")
	}

	if err := checkHTTPURL(cfg.Feed.URL); err != nil {
		add("feed.url: %v", err)
	}
	if _, err := DurationOr("feed.timeout", cfg.Feed.Timeout, 0); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Storage.Driver {
	case "file", "json", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add("storage.path: required for driver %q", cfg.Storage.Driver)
		}
	case "postgres", "postgresql", "pg":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add("storage.dsn: required for driver %q", cfg.Storage.Driver)
		}
	default:
		add("storage.driver: unknown driver %q (use file, sqlite or postgres)", cfg.Storage.Driver)
	}
	if _, err := DurationOr("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateNotifiers(cfg.Notifiers)...)
	errs = append(errs, validateLogging(cfg)...)

	if cfg.Ops.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Ops.Addr); err != nil {
			add("ops.addr: %v", err)
		}
	}
	return errors.Join(errs...)
}

func validateNotifiers(ns []NotifierConfig) []error {
	var errs []error
	names := map[string]int{}
	enabled := 0
	for i, n := range ns {
		p := fmt.Sprintf("notifiers[%d]", i)
		if prev, dup := names[n.Name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: %q already used by notifiers[%d]", p, n.Name, prev))
		}
		names[n.Name] = i
		if _, err := DurationOr(p+".timeout", n.Timeout, 0); err != nil {
			errs = append(errs, err)
		}
		if n.RatePerSec < 0 {
			errs = append(errs, fmt.Errorf("%s.rate_per_sec: must be >= 0", p))
		}
		if !n.IsEnabled() {
			continue
		}
		enabled++
		switch n.Type {
		case "discord", "slack":
			if err := checkHTTPURL(n.WebhookURL); err != nil {
				errs = append(errs, fmt.Errorf("%s.webhook_url: %w", p, err))
			}
		case "telegram":
			if strings.TrimSpace(n.Token) == "" {
				errs = append(errs, fmt.Errorf("%s.token: required for telegram", p))
			}
			if n.ChatID == 0 {
				errs = append(errs, fmt.Errorf("%s.chat_id: required for telegram", p))
			}
			if n.APIURL != "" {
				if err := checkHTTPURL(n.APIURL); err != nil {
					errs = append(errs, fmt.Errorf("%s.api_url: %w", p, err))
				}
			}
		case "":
			errs = append(errs, fmt.Errorf("%s.type: required", p))
		default:
			errs = append(errs, fmt.Errorf("%s.type: unknown type %q (use discord, slack or telegram)", p, n.Type))
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("notifiers: at least one enabled notifier is required"))
	}
	return errs
}

func validateLogging(cfg *Config) []error {
	var errs []error
	lg := cfg.Logging
	if !logx.ValidLevel(lg.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lg.Level))
	}
	if lg.File.Enabled && strings.TrimSpace(lg.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path: required when file logging is enabled"))
	}
	if !lg.Telegram.Enabled {
		return errs
	}
	if lg.Telegram.MinLevel != "" && !logx.ValidLevel(lg.Telegram.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.telegram.min_level: unknown level %q", lg.Telegram.MinLevel))
	}
	if _, ok := cfg.LogNotifier(); !ok {
		errs = append(errs, errors.New("logging.telegram.notifier: no enabled telegram notifier matches"))
	}
	return errs
}

// LogNotifier resolves the telegram notifier used as the log chat transport.
func (c *Config) LogNotifier() (NotifierConfig, bool) {
	want := strings.TrimSpace(c.Logging.Telegram.Notifier)
	for _, n := range c.EnabledNotifiers() {
		if n.Type != "telegram" {
			continue
		}
		if want == "" || n.Name == want {
			return n, true
		}
	}
	return NotifierConfig{}, false
}

func checkHTTPURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
