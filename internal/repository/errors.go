package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// Default query timeouts.
const (
	// DefaultQueryTimeout is the timeout for single-row queries.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultListQueryTimeout is the timeout for list/paginated queries.
	DefaultListQueryTimeout = 10 * time.Second

	// DefaultWriteTimeout is the timeout for write operations (INSERT, UPDATE, DELETE).
	DefaultWriteTimeout = 10 * time.Second
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// WithQueryTimeout returns a context with the default query timeout.
// If the context already has a deadline shorter than the timeout, the original context is returned.
func WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultQueryTimeout)
}

// WithListQueryTimeout returns a context with the default list query timeout.
func WithListQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultListQueryTimeout)
}

// WithWriteTimeout returns a context with the default write timeout.
func WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultWriteTimeout)
}

// withTimeout adds a timeout to a context, respecting existing deadlines.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < timeout {
			return ctx, func() {}
		}
	}
	return context.WithTimeout(ctx, timeout)
}

// pgErrorCode returns the SQLSTATE of err, or "" if err is not a server error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// readError maps a single-row read failure.
func readError(op, resource string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource)
	}
	return apperrors.DatabaseError(op, err)
}

// writeError maps a write failure. Unique violations become conflicts
// carrying conflictMsg; foreign key violations mean the parent is gone.
func writeError(op, resource, conflictMsg string, err error) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return apperrors.Wrap(err, op, apperrors.CodeConflict, conflictMsg)
	case pgForeignKeyViolation:
		return apperrors.NotFound(resource)
	}
	return apperrors.DatabaseError(op, err)
}
