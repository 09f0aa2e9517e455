package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Connect creates a PostgreSQL pool tuned for the queue's access pattern:
// many short lease/update statements from the worker pool rather than
// long-lived sessions.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	// Workers poll the queue continuously, so keep a couple of warm
	// connections and recycle the rest when submission traffic dies down.
	if cfg.MaxConns > 2 {
		cfg.MinConns = 2
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Debug().Int32("max_conns", cfg.MaxConns).Msg("database pool ready")
	return pool, nil
}
