package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/clock"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
)

// tokenLength is the length of session tokens in bytes.
const tokenLength = 32

// Common auth errors
var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrSessionExpired     = apperrors.ErrSessionExpired
	ErrUnauthorized       = apperrors.ErrUnauthorized
)

// AuthService handles admin login, sessions and the bootstrap account.
type AuthService struct {
	users           domain.AdminUserRepository
	sessions        domain.SessionRepository
	sessionDuration time.Duration
	clock           clock.Clock
	metrics         *metrics.Metrics
	events          *metrics.BusinessEventLogger
	logger          *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users domain.AdminUserRepository,
	sessions domain.SessionRepository,
	sessionDuration time.Duration,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AuthService {
	if clk == nil {
		clk = clock.New()
	}
	return &AuthService{
		users:           users,
		sessions:        sessions,
		sessionDuration: sessionDuration,
		clock:           clk,
		metrics:         m,
		events:          metrics.NewBusinessEventLogger(logger),
		logger:          logger,
	}
}

func (s *AuthService) available() error {
	if s.users == nil || s.sessions == nil {
		return apperrors.ServiceUnavailable("admin store", nil)
	}
	return nil
}

// SessionDuration returns how long new sessions stay valid.
func (s *AuthService) SessionDuration() time.Duration {
	return s.sessionDuration
}

// Login authenticates an admin and creates a session. ip is only logged.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.Session, *domain.AdminUser, error) {
	if err := s.available(); err != nil {
		return nil, nil, err
	}
	if email == "" || password == "" {
		s.recordLogin(ctx, nil, email, ip, false)
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.recordLogin(ctx, nil, email, ip, false)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.CheckPassword(password) {
		s.recordLogin(ctx, nil, email, ip, false)
		return nil, nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, nil, apperrors.InternalError("failed to generate session token", err)
	}

	session := domain.NewSession(user.ID, token, s.clock.Now(), s.sessionDuration)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordSessionCreated()
	s.recordLogin(ctx, user, email, ip, true)
	return session, user, nil
}

func (s *AuthService) recordLogin(ctx context.Context, user *domain.AdminUser, email, ip string, success bool) {
	s.metrics.RecordAuthAttempt(success)
	if user != nil {
		s.events.UserLogin(ctx, user.ID, email, ip, success)
		return
	}
	s.events.UserLogin(ctx, uuid.Nil, email, ip, success)
}

// Logout invalidates a session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.available(); err != nil {
		return err
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil && !apperrors.IsNotFound(err) {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		s.events.UserLogout(ctx, session.UserID)
	}
	return nil
}

// ValidateSession resolves a session token to its admin account. Expired
// sessions are deleted on sight.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.AdminUser, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	if err := s.available(); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.ExpiredAt(s.clock.Now()) {
		if err := s.sessions.Delete(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap account, or resets its password when it
// already exists. An empty email disables the bootstrap.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	if err := s.available(); err != nil {
		return err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.CheckPassword(password) {
			return nil
		}
		if err := existing.SetPassword(password); err != nil {
			return apperrors.InternalError("failed to hash password", err)
		}
		if err := s.users.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to update admin user: %w", err)
		}
		s.logger.Info("admin user password updated", zap.String("user_id", existing.ID.String()))
		return nil
	case !apperrors.IsNotFound(err):
		return fmt.Errorf("failed to get admin user: %w", err)
	}

	user, err := domain.NewAdminUser(email, password, domain.RoleSuperAdmin)
	if err != nil {
		return apperrors.InternalError("failed to hash password", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	s.logger.Info("admin user created", zap.String("user_id", user.ID.String()))
	return nil
}

// CleanupExpiredSessions removes all expired sessions.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	if err := s.available(); err != nil {
		return 0, err
	}
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.RecordSessionsExpired(n)
		s.logger.Debug("expired sessions removed", zap.Int64("count", n))
	}
	return n, nil
}

// RunSessionSweeper removes expired sessions every interval until ctx is done.
func (s *AuthService) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := s.CleanupExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

// generateToken generates a cryptographically secure random token.
func generateToken() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
