package feed

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Record is one asset as listed by the upstream feed. Only the fields the
// watcher cares about are decoded; everything else is ignored.
type Record struct {
	// Identity is the mint address, falling back to the generic address field.
	Identity string
	Symbol   string
	Name     string

	// HasFreezeAuthority is set when the issuer can still freeze transfers.
	HasFreezeAuthority bool
}

type wireRecord struct {
	Mint            string          `json:"mint"`
	Address         string          `json:"address"`
	Symbol          *string         `json:"symbol"`
	Name            *string         `json:"name"`
	FreezeAuthority json.RawMessage `json:"freeze_authority"`
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id := strings.TrimSpace(w.Mint)
	if id == "" {
		id = strings.TrimSpace(w.Address)
	}
	*r = Record{
		Identity:           id,
		Symbol:             deref(w.Symbol),
		Name:               deref(w.Name),
		HasFreezeAuthority: truthyAuthority(w.FreezeAuthority),
	}
	return nil
}

// truthyAuthority accepts the shapes seen upstream: null, a base58 authority
// string, or a plain boolean.
func truthyAuthority(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s) != ""
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return false
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
