package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultTxRetries is how many times WithTransactionContext retries a
// transaction that failed on a serialization failure or deadlock.
const DefaultTxRetries = 3

// TxManager provides transaction management capabilities.
type TxManager struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *pgxpool.Pool, logger *zap.Logger) *TxManager {
	return &TxManager{
		pool:   pool,
		logger: logger,
	}
}

// TxFunc is a function that runs within a transaction.
// If it returns an error, the transaction is rolled back.
// If it returns nil, the transaction is committed.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// WithTransaction executes the given function within a transaction.
func (tm *TxManager) WithTransaction(ctx context.Context, fn TxFunc) error {
	return tm.WithTransactionOptions(ctx, pgx.TxOptions{}, fn)
}

// WithTransactionOptions executes the given function within a transaction with custom options.
func (tm *TxManager) WithTransactionOptions(ctx context.Context, opts pgx.TxOptions, fn TxFunc) error {
	tx, err := tm.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Error("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tm.logger.Debug("transaction rolling back due to error", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// txContextKey is the context key for transactions.
type txContextKey struct{}

// ContextWithTx adds a transaction to the context.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves a transaction from the context.
// Returns nil if no transaction is present.
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// Querier is an interface that both pgx.Tx and *pgxpool.Pool implement.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// GetQuerier returns the transaction from context if present, otherwise the pool.
func (tm *TxManager) GetQuerier(ctx context.Context) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return tm.pool
}

// WithTransactionContext executes fn within a transaction stored in the
// context, so repositories called by fn share it. Nested calls join the
// outer transaction. A top-level transaction that fails on a serialization
// failure or deadlock is retried up to DefaultTxRetries times.
func (tm *TxManager) WithTransactionContext(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	return tm.RetryableTransaction(ctx, DefaultTxRetries, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// RetryableTransaction executes a transaction with automatic retry on serialization failures.
func (tm *TxManager) RetryableTransaction(ctx context.Context, maxRetries int, fn TxFunc) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			tm.logger.Debug("retrying transaction",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
		}

		err := tm.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("transaction failed after %d retries: %w", maxRetries, lastErr)
}

// isRetryableError reports whether err is a serialization failure (40001)
// or a deadlock (40P01).
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
