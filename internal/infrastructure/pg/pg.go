package pg

import (
	"context"
	"fmt"
	"time"

	infraconfig "arbitrage-detector/internal/infrastructure/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions sizes the pool. A pass writes one result, so API reads
// dominate and a handful of connections is plenty.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = infraconfig.DefaultPGMaxConns
	}
	if o.MinConns < 0 || o.MinConns > o.MaxConns {
		o.MinConns = min(infraconfig.DefaultPGMinConns, o.MaxConns)
	}
	if o.MaxConnIdleTime <= 0 {
		o.MaxConnIdleTime = 2 * time.Minute
	}
	if o.HealthCheckPeriod <= 0 {
		o.HealthCheckPeriod = 30 * time.Second
	}
	return o
}

func poolConfig(url string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	opts = opts.withDefaults()
	cfg.MaxConns, cfg.MinConns = opts.MaxConns, opts.MinConns
	cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	cfg.HealthCheckPeriod = opts.HealthCheckPeriod
	return cfg, nil
}

type DB struct{ Pool *pgxpool.Pool }

func Connect(ctx context.Context, url string, opts PoolOptions) (*DB, error) {
	cfg, err := poolConfig(url, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close()                         { d.Pool.Close() }
func (d *DB) Ping(ctx context.Context) error { return d.Pool.Ping(ctx) }
