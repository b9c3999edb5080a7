// Package match decides whether a listed asset belongs to the watched campaign.
package match

import (
	"strings"

	"tokenwatch/internal/feed"
)

// Matches reports whether target occurs, case-insensitively, in the record's
// symbol or name. An empty target matches every record.
func Matches(rec feed.Record, target string) bool {
	t := strings.ToLower(target)
	return strings.Contains(strings.ToLower(rec.Symbol), t) ||
		strings.Contains(strings.ToLower(rec.Name), t)
}
