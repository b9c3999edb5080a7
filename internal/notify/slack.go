package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Slack posts mrkdwn text to a Slack incoming webhook.
type Slack struct {
	name     string
	url      string
	username string
	client   *http.Client
}

func NewSlack(name, webhookURL, username string, client *http.Client) (*Slack, error) {
	if err := validWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("slack %s: %w", name, err)
	}
	if strings.TrimSpace(username) == "" {
		username = DisplayName
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Slack{name: name, url: strings.TrimSpace(webhookURL), username: username, client: client}, nil
}

func (s *Slack) Name() string { return s.name }

type slackMessage struct {
	Text        string `json:"text"`
	Username    string `json:"username,omitempty"`
	UnfurlLinks bool   `json:"unfurl_links"`
}

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	return postJSON(ctx, s.client, s.name, s.url, slackMessage{Text: slackAlertText(a), Username: s.username})
}

func (s *Slack) Announce(ctx context.Context, l Liveness) error {
	return postJSON(ctx, s.client, s.name, s.url, slackMessage{Text: ":bell: *" + slackEscape(l.Text()) + "*", Username: s.username})
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func slackEscape(s string) string { return slackEscaper.Replace(s) }

func slackAlertText(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%s*\n", slackEscape(a.Headline()))
	fmt.Fprintf(&b, "*Token Symbol:* $%s\n", slackEscape(a.Symbol))
	fmt.Fprintf(&b, "*Token Name:* %s\n", slackEscape(a.Name))
	fmt.Fprintf(&b, "*Token Address:* `%s`\n", slackEscape(a.Identity))
	fmt.Fprintf(&b, "*Found At:* %s\n", a.FoundAtText)
	fmt.Fprintf(&b, "<%s|View on Solana Explorer> | <%s|View on Solscan>", a.ExplorerURL, a.SolscanURL)
	if a.FreezeWarning {
		fmt.Fprintf(&b, "\n:warning: *Warning:* %s", FreezeWarningText)
	}
	return b.String()
}
