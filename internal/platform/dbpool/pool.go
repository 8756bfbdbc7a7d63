package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planhub/planhub/internal/platform/env"
)

// settings are the pool knobs every service shares. Each field can be
// overridden per deployment through the environment.
type settings struct {
	minConns        int32
	maxConns        int32
	maxConnLifetime time.Duration
	maxConnIdleTime time.Duration
	healthCheck     time.Duration
}

func settingsFromEnv() settings {
	s := settings{
		minConns:        int32(env.Int("DB_MIN_CONNS", 2)),
		maxConns:        int32(env.Int("DB_MAX_CONNS", 20)),
		maxConnLifetime: env.Duration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		maxConnIdleTime: env.Duration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		healthCheck:     env.Duration("DB_HEALTH_CHECK_PERIOD", 30*time.Second),
	}
	if s.maxConns <= 0 {
		s.maxConns = 20
	}
	if s.minConns > s.maxConns {
		s.minConns = s.maxConns
	}
	return s
}

// New builds a tuned pgx pool. Connections are established lazily; callers
// that need the database up front gate on their schema wait loop.
func New(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	s := settingsFromEnv()
	cfg.MinConns = s.minConns
	cfg.MaxConns = s.maxConns
	cfg.MaxConnLifetime = s.maxConnLifetime
	cfg.MaxConnIdleTime = s.maxConnIdleTime
	cfg.HealthCheckPeriod = s.healthCheck

	return pgxpool.NewWithConfig(ctx, cfg)
}
