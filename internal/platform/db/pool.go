package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PoolConfig configures NewPool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// Retries is the number of extra connection attempts after the first.
	Retries int
	// MaxElapsed caps the total time spent retrying.
	MaxElapsed time.Duration
}

// NewPool opens a pgx pool and pings it, retrying with exponential backoff
// while the database comes up.
func NewPool(ctx context.Context, cfg PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	if cfg.MaxElapsed > 0 {
		bo.MaxElapsedTime = cfg.MaxElapsed
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(cfg.Retries, 0))), ctx)

	var pool *pgxpool.Pool
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("create connection pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn().Err(err).Int("attempt", attempt).Msg("database not reachable, retrying")
			return fmt.Errorf("ping database: %w", err)
		}
		pool = p
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}

	logger.Info().Int32("max_conns", pcfg.MaxConns).Int("attempts", attempt).Msg("database pool ready")
	return pool, nil
}
