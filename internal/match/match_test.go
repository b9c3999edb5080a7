package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenwatch/internal/feed"
)

func TestMatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		rec    feed.Record
		target string
		want   bool
	}{
		{name: "symbol exact", rec: feed.Record{Symbol: "REBA"}, target: "reba", want: true},
		{name: "name substring", rec: feed.Record{Name: "Super Reba Token"}, target: "REBA", want: true},
		{name: "mixed case target", rec: feed.Record{Symbol: "kenny"}, target: "KeNnY", want: true},
		{name: "no match", rec: feed.Record{Symbol: "BONK", Name: "Bonk"}, target: "reba", want: false},
		{name: "missing fields", rec: feed.Record{Identity: "x"}, target: "reba", want: false},
		{name: "empty target matches all", rec: feed.Record{Identity: "x"}, target: "", want: true},
		{name: "target longer than fields", rec: feed.Record{Symbol: "RE"}, target: "reba", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Matches(tt.rec, tt.target))
		})
	}
}

// Matches must agree with the plain definition on arbitrary inputs.
func TestMatchesAgreesWithDefinition(t *testing.T) {
	t.Parallel()
	words := []string{"", "a", "Reba", "REBA", "reBa token", "x", "kenny", "ÄBC", "äbc"}
	for _, sym := range words {
		for _, name := range words {
			for _, target := range words {
				lt := strings.ToLower(target)
				want := strings.Contains(strings.ToLower(sym), lt) || strings.Contains(strings.ToLower(name), lt)
				got := Matches(feed.Record{Symbol: sym, Name: name}, target)
				assert.Equal(t, want, got, "symbol=%q name=%q target=%q", sym, name, target)
			}
		}
	}
}
