package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AdminRole is the privilege level of a back-office account.
type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "super_admin"
)

// AdminUser is a back-office account allowed to build quotes and edit the
// knowledge base.
type AdminUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         AdminRole `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewAdminUser creates an account with a bcrypt-hashed password.
// Emails are stored lowercased.
func NewAdminUser(email, password string, role AdminRole) (*AdminUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = RoleAdmin
	}

	now := time.Now().UTC()
	return &AdminUser{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetPassword replaces the stored hash.
func (u *AdminUser) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckPassword verifies a password against the stored hash.
func (u *AdminUser) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is an authenticated admin session keyed by an opaque token.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSession creates a session for userID that expires after ttl.
func NewSession(userID uuid.UUID, token string, now time.Time, ttl time.Duration) *Session {
	now = now.UTC()
	return &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// ExpiredAt reports whether the session is expired at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
