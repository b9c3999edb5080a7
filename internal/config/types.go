package config

import (
	"strings"

	"github.com/samber/lo"
)

const (
	DefaultInterval    = "1m"
	DefaultLimit       = 100
	DefaultFeedURL     = "https://api.jup.ag/tokens/v1/new"
	DefaultFeedTimeout = "15s"
	DefaultStorePath   = "./found_tokens.json"
	DefaultOpsAddr     = "127.0.0.1:9464"
	DefaultLogLevel    = "info"
)

// Config is the on-disk configuration. Durations are Go duration strings.
type Config struct {
	// Target is the case-insensitive substring matched against symbol and
	// name. Empty matches every record.
	Target string `json:"target"`

	// DisplayTimezone is the IANA zone used for human-readable times in alerts.
	DisplayTimezone string `json:"display_timezone,omitempty"`

	Poll      PollConfig       `json:"poll"`
	Feed      FeedConfig       `json:"feed"`
	Storage   StorageConfig    `json:"storage"`
	Notifiers []NotifierConfig `json:"notifiers"`
	Logging   LoggingConfig    `json:"logging"`
	Ops       OpsConfig        `json:"ops"`
}

type PollConfig struct {
	// Interval accepts a duration ("1m"), HH:MM ("00:05") or a cron spec.
	Interval string `json:"interval,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

type FeedConfig struct {
	URL       string `json:"url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"` // file | sqlite | postgres
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// NotifierConfig is one alert channel. Order in the list is dispatch order.
type NotifierConfig struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type"`
	Enabled *bool  `json:"enabled,omitempty"`

	WebhookURL string `json:"webhook_url,omitempty"`
	Username   string `json:"username,omitempty"`

	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`

	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

// IsEnabled defaults to true when "enabled" is omitted.
func (n NotifierConfig) IsEnabled() bool { return n.Enabled == nil || *n.Enabled }

type LoggingConfig struct {
	Level    string          `json:"level,omitempty"`
	Console  *bool           `json:"console,omitempty"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

// ConsoleEnabled defaults to true when "console" is omitted.
func (l LoggingConfig) ConsoleEnabled() bool { return l.Console == nil || *l.Console }

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// LoggingTelegram forwards warnings and errors to a Telegram chat through
// one of the configured telegram notifiers.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	Notifier   string `json:"notifier,omitempty"`  // name of a telegram notifier; first one when empty
	ChatID     int64  `json:"chat_id,omitempty"`   // defaults to the notifier's chat
	ThreadID   int    `json:"thread_id,omitempty"` // forum topic
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// OpsConfig controls the operational HTTP server (/healthz, /metrics, pprof).
type OpsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token enables bearer auth. Without it the server only binds loopback
	// unless AllowInsecure is set.
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Poll.Interval) == "" {
		c.Poll.Interval = DefaultInterval
	}
	if c.Poll.Limit == 0 {
		c.Poll.Limit = DefaultLimit
	}
	if strings.TrimSpace(c.Feed.URL) == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if strings.TrimSpace(c.Feed.Timeout) == "" {
		c.Feed.Timeout = DefaultFeedTimeout
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Driver == "file" && strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStorePath
	}
	for i := range c.Notifiers {
		n := &c.Notifiers[i]
		n.Type = strings.ToLower(strings.TrimSpace(n.Type))
		if strings.TrimSpace(n.Name) == "" {
			n.Name = n.Type
		}
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Ops.Enabled && strings.TrimSpace(c.Ops.Addr) == "" {
		c.Ops.Addr = DefaultOpsAddr
	}
}

// EnabledNotifiers returns the enabled channels in configured order.
func (c *Config) EnabledNotifiers() []NotifierConfig {
	return lo.Filter(c.Notifiers, func(n NotifierConfig, _ int) bool { return n.IsEnabled() })
}
