package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/middleware"
)

// SessionCookieName is the cookie holding the admin session token.
const SessionCookieName = "session_token"

// loginRetryAfter matches the login limiter's block duration.
const loginRetryAfter = 30 * time.Minute

// AuthHandler handles admin login, logout and session checks.
type AuthHandler struct {
	*BaseHandler
	authService      AuthService
	loginRateLimiter *middleware.LoginRateLimiter
	secureCookie     bool
}

// AuthHandlerConfig holds configuration for AuthHandler.
type AuthHandlerConfig struct {
	AuthService      AuthService
	LoginRateLimiter *middleware.LoginRateLimiter
	// SecureCookie forces the Secure flag even behind a TLS-terminating proxy.
	SecureCookie bool
	Logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler with all required dependencies.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	if cfg.AuthService == nil {
		panic("authService is required")
	}
	return &AuthHandler{
		BaseHandler:      NewBaseHandler(cfg.Logger),
		authService:      cfg.AuthService,
		loginRateLimiter: cfg.LoginRateLimiter,
		secureCookie:     cfg.SecureCookie,
	}
}

// RegisterRoutes registers the public auth routes on the router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.BodySizeLimiter(middleware.MaxJSONBodySize)).Post("/api/admin/login", h.HandleLogin)
	r.Post("/api/admin/logout", h.HandleLogout)
}

// RegisterAdminRoutes registers the session routes that need an admin.
func (h *AuthHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/api/admin/me", h.HandleMe)
}

// Middleware rejects requests without a valid admin session and puts the
// admin in the request context.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			h.WriteError(w, r, apperrors.ErrUnauthorized)
			return
		}

		user, err := h.authService.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			if apperrors.GetHTTPStatus(err) == http.StatusUnauthorized {
				h.clearSessionCookie(w, r)
			}
			h.WriteError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), adminContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginRequest is the body of a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	User      *domain.AdminUser `json:"user"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// HandleLogin checks credentials and starts a session.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	ip := middleware.ClientIP(r)
	if h.loginRateLimiter != nil && !h.loginRateLimiter.Check(ip, req.Email) {
		w.Header().Set("Retry-After", strconv.Itoa(int(loginRetryAfter.Seconds())))
		h.WriteError(w, r, apperrors.ErrRateLimited)
		return
	}

	session, user, err := h.authService.Login(r.Context(), req.Email, req.Password, ip)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if h.loginRateLimiter != nil {
		h.loginRateLimiter.RecordSuccess(ip, req.Email)
	}

	h.setSessionCookie(w, r, session)
	h.WriteJSON(w, r, http.StatusOK, LoginResponse{User: user, ExpiresAt: session.ExpiresAt})
}

// HandleLogout ends the current session. It succeeds without a session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.authService.Logout(r.Context(), cookie.Value); err != nil {
			middleware.LoggerWithCorrelation(r.Context(), h.logger).Error("failed to logout", zap.Error(err))
		}
	}

	h.clearSessionCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the authenticated admin.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := GetAdminFromContext(r.Context())
	if user == nil {
		h.WriteError(w, r, apperrors.ErrUnauthorized)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, session *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
