// Package handler provides the HTTP API of the funnel.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/middleware"
	"github.com/levelapp/funnel/internal/validation"
)

// Context key for the authenticated admin
type contextKey string

const adminContextKey contextKey = "admin"

// GetAdminFromContext retrieves the authenticated admin from the context.
func GetAdminFromContext(ctx context.Context) *domain.AdminUser {
	user, ok := ctx.Value(adminContextKey).(*domain.AdminUser)
	if !ok {
		return nil
	}
	return user
}

// BaseHandler provides shared functionality for all handlers.
type BaseHandler struct {
	logger *zap.Logger
}

// NewBaseHandler creates a new BaseHandler.
func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &BaseHandler{logger: logger}
}

// Logger returns the handler's logger.
func (b *BaseHandler) Logger() *zap.Logger {
	return b.logger
}

// WriteJSON writes a JSON response with the appropriate headers.
func (b *BaseHandler) WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		middleware.LoggerWithCorrelation(r.Context(), b.logger).Debug("failed to write JSON response", zap.Error(err))
	}
}

// WriteError writes err in the API error envelope. Errors that are not
// application errors are reported as internal errors without their detail.
func (b *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	status := appErr.HTTPStatus()

	log := middleware.LoggerWithCorrelation(r.Context(), b.logger)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	} else {
		log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	}

	b.WriteJSON(w, r, status, appErr.ToResponse())
}

func toAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(apperrors.CodeTimeout, "request timed out")
	}
	return apperrors.New(apperrors.CodeInternal, "internal server error")
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperrors.ErrTooLarge
		case errors.Is(err, io.EOF):
			return apperrors.InvalidRequest("request body is empty")
		default:
			return apperrors.InvalidRequest("invalid JSON body")
		}
	}
	return nil
}

// uuidParam parses a UUID from a route parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(name, chi.URLParam(r, name))
}

func parseUUID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, apperrors.MissingField(field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperrors.InvalidFormat(field, "a UUID")
	}
	return id, nil
}

// pagination reads limit and offset query parameters. Unparseable values
// fall back to the defaults.
func pagination(r *http.Request) validation.PaginationParams {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return validation.NormalizePaginationParams(limit, offset, nil)
}
