package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/levelapp/funnel/internal/database"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// AdminUserRepository implements domain.AdminUserRepository using PostgreSQL.
type AdminUserRepository struct {
	tx *database.TxManager
}

// NewAdminUserRepository creates a new AdminUserRepository.
func NewAdminUserRepository(tx *database.TxManager) *AdminUserRepository {
	return &AdminUserRepository{tx: tx}
}

// Create inserts a new admin account.
func (r *AdminUserRepository) Create(ctx context.Context, user *domain.AdminUser) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("INSERT INTO admin_users (%s) VALUES (%s)",
		AdminUserColumns.InsertColumns(), AdminUserColumns.Placeholders())

	_, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return writeError("AdminUserRepository.Create", "admin user", "an account already exists for this email", err)
	}
	return nil
}

// GetByID retrieves an admin account by ID.
func (r *AdminUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdminUser, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + AdminUserColumns.Select() + " FROM admin_users WHERE id = $1"
	user, err := scanAdminUser(r.tx.GetQuerier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, readError("AdminUserRepository.GetByID", "admin user", err)
	}
	return user, nil
}

// GetByEmail retrieves an admin account by normalized email.
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + AdminUserColumns.Select() + " FROM admin_users WHERE email = $1"
	user, err := scanAdminUser(r.tx.GetQuerier(ctx).QueryRow(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, readError("AdminUserRepository.GetByEmail", "admin user", err)
	}
	return user, nil
}

// Update writes the password hash and role of an account.
func (r *AdminUserRepository) Update(ctx context.Context, user *domain.AdminUser) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE admin_users SET
			password_hash = $2,
			role = $3,
			updated_at = $4
		WHERE id = $1`

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		user.ID,
		user.PasswordHash,
		user.Role,
		user.UpdatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("AdminUserRepository.Update", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("admin user")
	}
	return nil
}

func scanAdminUser(row pgx.Row) (*domain.AdminUser, error) {
	var user domain.AdminUser
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SessionRepository implements domain.SessionRepository using PostgreSQL.
type SessionRepository struct {
	tx *database.TxManager
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(tx *database.TxManager) *SessionRepository {
	return &SessionRepository{tx: tx}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("INSERT INTO admin_sessions (%s) VALUES (%s)",
		SessionColumns.InsertColumns(), SessionColumns.Placeholders())

	_, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return writeError("SessionRepository.Create", "admin user", "session token already in use", err)
	}
	return nil
}

// GetByToken retrieves a session by its token. Expiry is checked by the caller.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + SessionColumns.Select() + " FROM admin_sessions WHERE token = $1"

	var s domain.Session
	err := r.tx.GetQuerier(ctx).QueryRow(ctx, query, token).Scan(
		&s.ID,
		&s.UserID,
		&s.Token,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, readError("SessionRepository.GetByToken", "session", err)
	}
	return &s, nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	if _, err := r.tx.GetQuerier(ctx).Exec(ctx, "DELETE FROM admin_sessions WHERE token = $1", token); err != nil {
		return apperrors.DatabaseError("SessionRepository.Delete", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, "DELETE FROM admin_sessions WHERE expires_at <= NOW()")
	if err != nil {
		return 0, apperrors.DatabaseError("SessionRepository.DeleteExpired", err)
	}
	return result.RowsAffected(), nil
}
