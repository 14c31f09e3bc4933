// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/config"
)

// DB wraps the pgx connection pool with additional functionality.
type DB struct {
	Pool        *pgxpool.Pool
	TxManager   *TxManager
	QueryLogger *QueryLogger
	logger      *zap.Logger
}

// New creates a new database connection pool. Every query is traced by a
// QueryLogger that reports to recorder when it is not nil.
func New(ctx context.Context, cfg *config.DatabaseConfig, recorder QueryRecorder, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MaxIdleConnections)
	poolConfig.MaxConnLifetime = cfg.ConnectionMaxLifetime
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	qlCfg := DefaultQueryLoggerConfig()
	if cfg.SlowQueryThreshold > 0 {
		qlCfg.SlowQueryThreshold = cfg.SlowQueryThreshold
		qlCfg.VerySlowQueryThreshold = 5 * cfg.SlowQueryThreshold
	}
	queryLogger := NewQueryLogger(qlCfg, recorder, logger)
	poolConfig.ConnConfig.Tracer = queryLogger

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Name),
		zap.Int("max_connections", cfg.MaxConnections),
	)

	return &DB{
		Pool:        pool,
		TxManager:   NewTxManager(pool, logger),
		QueryLogger: queryLogger,
		logger:      logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return NewMigrator(db.Pool, db.logger).MigrateFromFS(ctx, migrationsFS, migrationsDir)
}

// Close logs the query statistics and closes the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		if db.QueryLogger != nil {
			db.QueryLogger.LogStats()
		}
		db.Pool.Close()
		db.logger.Info("database connection closed")
	}
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats returns current pool statistics.
func (db *DB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}
