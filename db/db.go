// Package db connects to PostgreSQL and owns the schema of the user store.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool for cfg and pings it. Production connections use TLS.
func Connect(ctx context.Context, cfg config.DatabaseConfig, production bool) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	if production {
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.GetLogger().Infow("Connected to database",
		"url", logger.MaskConnectionString(cfg.URL()),
		"maxConns", poolConfig.MaxConns)
	return pool, nil
}
