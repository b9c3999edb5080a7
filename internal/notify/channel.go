package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultRatePerSec = 2.0
)

// Channel is one notification destination.
type Channel interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
	Announce(ctx context.Context, l Liveness) error
}

// ChannelConfig describes one configured destination. Which fields matter
// depends on Type.
type ChannelConfig struct {
	Name string
	Type string // discord | slack | telegram

	// discord, slack
	WebhookURL string
	Username   string

	// telegram
	Token    string
	ChatID   int64
	ThreadID int
	APIURL   string

	Timeout    time.Duration
	RatePerSec float64
}

// NewChannel builds the channel described by cfg.
func NewChannel(cfg ChannelConfig) (Channel, error) {
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = cfg.Type
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Type {
	case "discord":
		return NewDiscord(cfg.Name, cfg.WebhookURL, cfg.Username, client)
	case "slack":
		return NewSlack(cfg.Name, cfg.WebhookURL, cfg.Username, client)
	case "telegram":
		return NewTelegram(TelegramConfig{
			Name:     cfg.Name,
			Token:    cfg.Token,
			ChatID:   cfg.ChatID,
			ThreadID: cfg.ThreadID,
			APIURL:   cfg.APIURL,
			Client:   client,
		})
	case "":
		return nil, errors.New("notifier type is required")
	default:
		return nil, fmt.Errorf("unknown notifier type %q", cfg.Type)
	}
}
