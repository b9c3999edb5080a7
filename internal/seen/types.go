package seen

import (
	"context"
	"time"
)

// Entry records the first time an identity matched. Entries are never updated.
type Entry struct {
	Identity    string
	Symbol      string
	Name        string
	FirstSeenAt time.Time
}

// Config selects and configures a backend.
//
// Driver values:
//   - "file" (default): JSON snapshot at Path
//   - "sqlite": database file at Path
//   - "postgres": DSN
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// backend is the durable half of the store.
type backend interface {
	// load returns every persisted entry. A missing store is an empty map.
	load(ctx context.Context) (map[string]Entry, error)
	// persist makes added durable. snapshot already contains added.
	persist(ctx context.Context, snapshot map[string]Entry, added Entry) error
	close() error
	describe() string
}
