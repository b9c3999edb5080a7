package seen

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

type sqliteBackend struct {
	db   *sql.DB
	path string
}

func openSQLite(ctx context.Context, cfg Config) (backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	// FULL: a returned insert must survive power loss.
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = FULL"); err != nil {
		_ = db.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sqlite %s: set synchronous: %w", path, err)
		}
		return nil, &CorruptStateError{Source: path, Err: fmt.Errorf("set synchronous: %w", err)}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, &CorruptStateError{Source: path, Err: err}
	}
	return &sqliteBackend{db: db, path: path}, nil
}

func (b *sqliteBackend) describe() string { return "sqlite:" + b.path }

func (b *sqliteBackend) close() error { return b.db.Close() }

func (b *sqliteBackend) load(ctx context.Context) (map[string]Entry, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT identity, symbol, name, first_seen_at FROM seen_assets`)
	if err != nil {
		return nil, &CorruptStateError{Source: b.path, Err: err}
	}
	defer rows.Close()

	out := map[string]Entry{}
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.Identity, &e.Symbol, &e.Name, &at); err != nil {
			return nil, &CorruptStateError{Source: b.path, Err: err}
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, &CorruptStateError{Source: b.path, Err: fmt.Errorf("identity %q: %w", e.Identity, err)}
		}
		e.FirstSeenAt = t.UTC()
		out[e.Identity] = e
	}
	if err := rows.Err(); err != nil {
		return nil, &CorruptStateError{Source: b.path, Err: err}
	}
	return out, nil
}

func (b *sqliteBackend) persist(ctx context.Context, snapshot map[string]Entry, added Entry) error {
	_ = snapshot
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO seen_assets(identity, symbol, name, first_seen_at) VALUES(?,?,?,?)
		 ON CONFLICT(identity) DO NOTHING`,
		added.Identity, added.Symbol, added.Name, added.FirstSeenAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}
