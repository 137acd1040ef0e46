package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifeline-hq/lifeline/pkg/config"
	"github.com/lifeline-hq/lifeline/pkg/logger"
)

const (
	defaultMaxConns       = 20
	defaultConnectTimeout = 5 * time.Second
	defaultPingTimeout    = 3 * time.Second
)

// Store is the concrete PostgreSQL driver backed by pgxpool.Pool. It does not
// leak pgx types through its public API beyond Pool itself.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore initializes the pgx pool from the database config and verifies the
// connection with a bounded ping.
func NewStore(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = clampConns(cfg.MaxConns)
	poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.FromContext(ctx).Info("postgres store initialized",
		"host", cfg.Host, "database", cfg.Name, "max_conns", poolCfg.MaxConns)
	return &Store{pool: pool}, nil
}

// Pool exposes the internal pool for repository construction.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck verifies the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *Store) Close(ctx context.Context) {
	s.pool.Close()
	logger.FromContext(ctx).Info("postgres store closed")
}

func clampConns(value int) int32 {
	if value <= 0 {
		return defaultMaxConns
	}
	if value > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(value)
}
