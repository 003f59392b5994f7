package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing for the booking workload. Reservation transactions hold a row
// lock with NOWAIT for a single short round trip, so a modest pool is enough;
// contended requests fail fast instead of queueing on a connection.
const (
	poolMaxConns        = 10
	poolMinConns        = 1
	poolHealthCheck     = 30 * time.Second
	poolConnLifetime    = time.Hour
	poolConnIdleTimeout = 15 * time.Minute
	connectPingTimeout  = 5 * time.Second
)

// ConnectPostgres opens a pgx pool against the booking database and verifies
// it with a ping before handing it out.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.HealthCheckPeriod = poolHealthCheck
	cfg.MaxConnLifetime = poolConnLifetime
	cfg.MaxConnIdleTime = poolConnIdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectPingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
