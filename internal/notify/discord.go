package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const discordGreen = 0x00ff00

// Discord posts to a Discord incoming webhook.
type Discord struct {
	name     string
	url      string
	username string
	client   *http.Client
}

func NewDiscord(name, webhookURL, username string, client *http.Client) (*Discord, error) {
	if err := validWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("discord %s: %w", name, err)
	}
	if strings.TrimSpace(username) == "" {
		username = DisplayName
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Discord{name: name, url: strings.TrimSpace(webhookURL), username: username, client: client}, nil
}

func (d *Discord) Name() string { return d.name }

type discordMessage struct {
	Content  string         `json:"content"`
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Footer    discordFooter  `json:"footer"`
	Timestamp string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

func (d *Discord) Notify(ctx context.Context, a Alert) error {
	return postJSON(ctx, d.client, d.name, d.url, discordAlert(a, d.username))
}

func (d *Discord) Announce(ctx context.Context, l Liveness) error {
	return postJSON(ctx, d.client, d.name, d.url, discordMessage{
		Content:  "🔔 **" + l.Text() + "**",
		Username: d.username,
	})
}

func discordAlert(a Alert, username string) discordMessage {
	fields := []discordField{
		{Name: "Token Symbol", Value: "$" + a.Symbol, Inline: true},
		{Name: "Token Name", Value: a.Name, Inline: true},
		{Name: "Token Address", Value: a.Identity},
		{Name: "Found At", Value: a.FoundAtText},
		{Name: "Explorer Links", Value: fmt.Sprintf("[View on Solana Explorer](%s)\n[View on Solscan](%s)", a.ExplorerURL, a.SolscanURL)},
	}
	if a.FreezeWarning {
		fields = append(fields, discordField{Name: FreezeWarningTitle, Value: FreezeWarningText})
	}
	return discordMessage{
		Content:  "🔔 **" + a.Headline() + "** 🔔",
		Username: username,
		Embeds: []discordEmbed{{
			Title:     "🚨 New Token Alert: $" + a.Title,
			Color:     discordGreen,
			Fields:    fields,
			Footer:    discordFooter{Text: DisplayName},
			Timestamp: a.FoundAt.UTC().Format(time.RFC3339),
		}},
	}
}
