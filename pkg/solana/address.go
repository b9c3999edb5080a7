// Package solana holds the small amount of Solana-specific knowledge tokenwatch
// needs: address sanity checks and explorer deep links.
package solana

import (
	"net/url"
	"strings"

	"github.com/mr-tron/base58"
)

// PublicKeyLen is the decoded length of an ed25519 account address.
const PublicKeyLen = 32

const (
	explorerBase = "https://explorer.solana.com/address/"
	solscanBase  = "https://solscan.io/token/"
)

// IsAddress reports whether s is a base58 string that decodes to a 32-byte key.
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	b, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(b) == PublicKeyLen
}

// ExplorerURL links the address on explorer.solana.com.
func ExplorerURL(addr string) string {
	return explorerBase + url.PathEscape(strings.TrimSpace(addr))
}

// SolscanURL links the token page on solscan.io.
func SolscanURL(addr string) string {
	return solscanBase + url.PathEscape(strings.TrimSpace(addr))
}
