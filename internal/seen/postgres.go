package seen

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

type postgresBackend struct {
	pool *pgxpool.Pool
	host string
}

func openPostgres(ctx context.Context, cfg Config) (backend, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &postgresBackend{pool: pool, host: pcfg.ConnConfig.Host}, nil
}

func (b *postgresBackend) describe() string { return "postgres:" + b.host }

func (b *postgresBackend) close() error {
	b.pool.Close()
	return nil
}

func (b *postgresBackend) load(ctx context.Context) (map[string]Entry, error) {
	rows, err := b.pool.Query(ctx, `SELECT identity, symbol, name, first_seen_at FROM seen_assets`)
	if err != nil {
		return nil, fmt.Errorf("load seen_assets: %w", err)
	}
	defer rows.Close()

	out := map[string]Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Identity, &e.Symbol, &e.Name, &e.FirstSeenAt); err != nil {
			return nil, &CorruptStateError{Source: "postgres:seen_assets", Err: err}
		}
		e.FirstSeenAt = e.FirstSeenAt.UTC()
		out[e.Identity] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load seen_assets: %w", err)
	}
	return out, nil
}

func (b *postgresBackend) persist(ctx context.Context, snapshot map[string]Entry, added Entry) error {
	_ = snapshot
	_, err := b.pool.Exec(ctx,
		`INSERT INTO seen_assets(identity, symbol, name, first_seen_at) VALUES($1,$2,$3,$4)
		 ON CONFLICT (identity) DO NOTHING`,
		added.Identity, added.Symbol, added.Name, added.FirstSeenAt.UTC(),
	)
	return err
}
