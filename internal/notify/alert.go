package notify

import (
	"fmt"
	"strings"
	"time"

	"tokenwatch/internal/feed"
	"tokenwatch/pkg/solana"
)

const (
	unknown = "Unknown"

	// DisplayName is the sender name used by webhook channels when none is configured.
	DisplayName = "Solana Token Monitor"

	FreezeWarningTitle = "⚠️ Warning"
	FreezeWarningText  = "This token has a freeze authority which means the creator can freeze transfers"

	foundAtLayout = "Jan 2, 2006 15:04:05 MST"
)

// Alert is the channel-independent content of one match notification.
type Alert struct {
	Campaign string // target, upper-cased
	Identity string
	Symbol   string // "Unknown" when absent
	Name     string // "Unknown" when absent
	Title    string // symbol, else name, else "Unknown"

	FoundAt     time.Time
	FoundAtText string

	ExplorerURL string
	SolscanURL  string

	FreezeWarning bool
}

// NewAlert builds the alert for rec. loc controls the human-readable time; nil means UTC.
func NewAlert(rec feed.Record, target string, foundAt time.Time, loc *time.Location) Alert {
	if loc == nil {
		loc = time.UTC
	}
	symbol := strings.TrimSpace(rec.Symbol)
	name := strings.TrimSpace(rec.Name)

	title := symbol
	if title == "" {
		title = name
	}
	a := Alert{
		Campaign:      strings.ToUpper(strings.TrimSpace(target)),
		Identity:      rec.Identity,
		Symbol:        orUnknown(symbol),
		Name:          orUnknown(name),
		Title:         orUnknown(title),
		FoundAt:       foundAt,
		FoundAtText:   foundAt.In(loc).Format(foundAtLayout),
		ExplorerURL:   solana.ExplorerURL(rec.Identity),
		SolscanURL:    solana.SolscanURL(rec.Identity),
		FreezeWarning: rec.HasFreezeAuthority,
	}
	return a
}

// Headline is the short banner that precedes the alert body.
func (a Alert) Headline() string {
	if a.Campaign == "" {
		return "TOKEN DETECTED!"
	}
	return a.Campaign + " TOKEN DETECTED!"
}

// Liveness is the one-shot startup announcement.
type Liveness struct {
	Campaign string
	At       time.Time
}

func NewLiveness(target string, at time.Time) Liveness {
	return Liveness{Campaign: strings.ToUpper(strings.TrimSpace(target)), At: at}
}

func (l Liveness) Text() string {
	campaign := l.Campaign
	if campaign == "" {
		campaign = "all new tokens"
	}
	return fmt.Sprintf("Token Monitor Started - Watching for %s on Solana", campaign)
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
