// Package db opens the Postgres pool and owns the schema migrations.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "trekmap-api"
	connectTimeout  = 30 * time.Second
)

// New opens a pool on addr and pings it. maxConns <= 0 keeps the pgx default;
// maxIdleTime is a Go duration string such as "15m".
func New(addr string, maxConns int32, maxIdleTime string) (*pgxpool.Pool, error) {
	idle, err := time.ParseDuration(maxIdleTime)
	if err != nil {
		return nil, fmt.Errorf("db: max idle time %q: %w", maxIdleTime, err)
	}

	cfg, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, fmt.Errorf("db: parse address: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = idle
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}
