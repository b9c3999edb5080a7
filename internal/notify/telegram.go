package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "tokenwatch/pkg/logx"
)

const telegramTextLimit = 4096

type TelegramConfig struct {
	Name     string
	Token    string
	ChatID   int64
	ThreadID int
	APIURL   string // defaults to the public Bot API
	Client   *http.Client
}

// Telegram sends HTML messages through the Bot API.
type Telegram struct {
	name     string
	bot      *tele.Bot
	chatID   int64
	threadID int
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram %s: token is empty", cfg.Name)
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram %s: chat_id is required", cfg.Name)
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		Client:  cfg.Client,
		Offline: true, // send-only; never polls and skips getMe
	})
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", cfg.Name, err)
	}
	return &Telegram{name: cfg.Name, bot: b, chatID: cfg.ChatID, threadID: cfg.ThreadID}, nil
}

func (t *Telegram) Name() string { return t.name }

func (t *Telegram) Notify(ctx context.Context, a Alert) error {
	return t.send(ctx, t.chatID, t.threadID, telegramAlertHTML(a), tele.ModeHTML)
}

func (t *Telegram) Announce(ctx context.Context, l Liveness) error {
	return t.send(ctx, t.chatID, t.threadID, "🔔 <b>"+html.EscapeString(l.Text())+"</b>", tele.ModeHTML)
}

// LogSender returns a logx.Sender that posts plain-text log lines to chatID
// (the alert chat when zero).
func (t *Telegram) LogSender(chatID int64, threadID int) logx.Sender {
	if chatID == 0 {
		chatID, threadID = t.chatID, t.threadID
	}
	return &telegramLogSender{t: t, chatID: chatID, threadID: threadID}
}

type telegramLogSender struct {
	t        *Telegram
	chatID   int64
	threadID int
}

func (s *telegramLogSender) SendLog(ctx context.Context, text string) error {
	return s.t.send(ctx, s.chatID, s.threadID, text, tele.ModeDefault)
}

func (t *Telegram) send(ctx context.Context, chatID int64, threadID int, text string, mode tele.ParseMode) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitTelegramText(text, telegramTextLimit, mode == tele.ModeHTML) {
		if err := ctx.Err(); err != nil {
			return &SendError{Channel: t.name, Err: err}
		}
		_, err := t.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             mode,
			DisableWebPagePreview: true,
			ThreadID:              threadID,
		})
		if err != nil {
			se := &SendError{Channel: t.name, Err: err}
			var te *tele.Error
			if errors.As(err, &te) {
				se.Status = te.Code
			}
			return se
		}
	}
	return nil
}

func telegramAlertHTML(a Alert) string {
	esc := html.EscapeString
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>%s</b>\n\n", esc(a.Headline()))
	fmt.Fprintf(&b, "🚨 <b>New Token Alert: $%s</b>\n", esc(a.Title))
	fmt.Fprintf(&b, "<b>Token Symbol:</b> $%s\n", esc(a.Symbol))
	fmt.Fprintf(&b, "<b>Token Name:</b> %s\n", esc(a.Name))
	fmt.Fprintf(&b, "<b>Token Address:</b> <code>%s</code>\n", esc(a.Identity))
	fmt.Fprintf(&b, "<b>Found At:</b> %s\n", esc(a.FoundAtText))
	fmt.Fprintf(&b, "<a href=\"%s\">View on Solana Explorer</a> | <a href=\"%s\">View on Solscan</a>", esc(a.ExplorerURL), esc(a.SolscanURL))
	if a.FreezeWarning {
		fmt.Fprintf(&b, "\n\n%s: %s", esc(FreezeWarningTitle), esc(FreezeWarningText))
	}
	return b.String()
}

// splitTelegramText cuts s into chunks of at most limit runes, preferring
// newline boundaries and, for HTML, never cutting inside a tag.
func splitTelegramText(s string, limit int, isHTML bool) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if isHTML && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		if chunk := strings.TrimRight(string(rs[start:end]), "\n"); chunk != "" {
			out = append(out, chunk)
		}
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
