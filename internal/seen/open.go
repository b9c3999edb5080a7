package seen

import (
	"context"
	"errors"
	"strings"

	logx "tokenwatch/pkg/logx"
)

const DefaultPath = "./found_tokens.json"

// Open loads the configured backend and returns a ready store.
// A missing file or empty table yields an empty store; unreadable existing
// state yields a *CorruptStateError.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "seen"))

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		be  backend
		err error
	)
	switch driver {
	case "", "file", "json":
		be, err = openFile(cfg)
	case "sqlite", "sqlite3":
		be, err = openSQLite(ctx, cfg)
	case "postgres", "postgresql", "pg":
		be, err = openPostgres(ctx, cfg)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	return newStore(ctx, be, log)
}
