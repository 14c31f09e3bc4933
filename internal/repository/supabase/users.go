package supabase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// adminUserRow carries the password hash, which domain.AdminUser never
// serializes.
type adminUserRow struct {
	ID           uuid.UUID        `json:"id"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"password_hash"`
	Role         domain.AdminRole `json:"role"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func toAdminUserRow(u *domain.AdminUser) adminUserRow {
	return adminUserRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r adminUserRow) user() *domain.AdminUser {
	return &domain.AdminUser{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// AdminUserRepository implements domain.AdminUserRepository on Supabase.
type AdminUserRepository struct {
	c *Client
}

// NewAdminUserRepository creates a new AdminUserRepository.
func NewAdminUserRepository(c *Client) *AdminUserRepository {
	return &AdminUserRepository{c: c}
}

// Create inserts a new admin account.
func (r *AdminUserRepository) Create(ctx context.Context, user *domain.AdminUser) error {
	if err := ctx.Err(); err != nil {
		return readError("AdminUserRepository.Create", err)
	}

	var inserted []adminUserRow
	_, err := r.c.client.From(tableAdminUsers).
		Insert(toAdminUserRow(user), false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return writeError("AdminUserRepository.Create", "admin user", "an account already exists for this email", err)
	}
	return nil
}

// GetByID retrieves an admin account by ID.
func (r *AdminUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdminUser, error) {
	return r.getOne(ctx, "AdminUserRepository.GetByID", "id", id.String())
}

// GetByEmail retrieves an admin account by normalized email.
func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	return r.getOne(ctx, "AdminUserRepository.GetByEmail", "email", domain.NormalizeEmail(email))
}

func (r *AdminUserRepository) getOne(ctx context.Context, op, column, value string) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(op, err)
	}

	var rows []adminUserRow
	_, err := r.c.client.From(tableAdminUsers).
		Select("*", "", false).
		Eq(column, value).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError(op, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("admin user")
	}
	return rows[0].user(), nil
}

// Update writes the password hash and role of an account.
func (r *AdminUserRepository) Update(ctx context.Context, user *domain.AdminUser) error {
	if err := ctx.Err(); err != nil {
		return readError("AdminUserRepository.Update", err)
	}

	user.UpdatedAt = r.c.now().UTC()
	patch := map[string]any{
		"password_hash": user.PasswordHash,
		"role":          user.Role,
		"updated_at":    user.UpdatedAt,
	}

	var updated []adminUserRow
	_, err := r.c.client.From(tableAdminUsers).
		Update(patch, "representation", "").
		Eq("id", user.ID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return readError("AdminUserRepository.Update", err)
	}
	if len(updated) == 0 {
		return apperrors.NotFound("admin user")
	}
	return nil
}

// SessionRepository implements domain.SessionRepository on Supabase.
type SessionRepository struct {
	c *Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(c *Client) *SessionRepository {
	return &SessionRepository{c: c}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return readError("SessionRepository.Create", err)
	}

	var inserted []domain.Session
	_, err := r.c.client.From(tableSessions).
		Insert(session, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return writeError("SessionRepository.Create", "admin user", "session token already in use", err)
	}
	return nil
}

// GetByToken retrieves a session by its token. Expiry is checked by the caller.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("SessionRepository.GetByToken", err)
	}

	var sessions []*domain.Session
	_, err := r.c.client.From(tableSessions).
		Select("*", "", false).
		Eq("token", token).
		ExecuteTo(&sessions)
	if err != nil {
		return nil, readError("SessionRepository.GetByToken", err)
	}
	if len(sessions) == 0 {
		return nil, apperrors.NotFound("session")
	}
	return sessions[0], nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return readError("SessionRepository.Delete", err)
	}

	var deleted []domain.Session
	_, err := r.c.client.From(tableSessions).
		Delete("representation", "").
		Eq("token", token).
		ExecuteTo(&deleted)
	if err != nil {
		return readError("SessionRepository.Delete", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, readError("SessionRepository.DeleteExpired", err)
	}

	var deleted []domain.Session
	_, err := r.c.client.From(tableSessions).
		Delete("representation", "").
		Lte("expires_at", timestamp(r.c.now())).
		ExecuteTo(&deleted)
	if err != nil {
		return 0, readError("SessionRepository.DeleteExpired", err)
	}
	return int64(len(deleted)), nil
}

var (
	_ domain.AdminUserRepository = (*AdminUserRepository)(nil)
	_ domain.SessionRepository   = (*SessionRepository)(nil)
)
