package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/logging"
	"github.com/levelapp/funnel/internal/middleware"
)

// LevelController reads and changes the process log level.
type LevelController interface {
	GetLevel() string
	SetLevel(level string) error
}

// LogLevelHandler handles runtime log level adjustment.
type LogLevelHandler struct {
	*BaseHandler
	levels LevelController
}

// NewLogLevelHandler creates a handler for log level management.
func NewLogLevelHandler(levels LevelController, logger *zap.Logger) *LogLevelHandler {
	if levels == nil {
		panic("level controller is required")
	}
	return &LogLevelHandler{
		BaseHandler: NewBaseHandler(logger),
		levels:      levels,
	}
}

// RegisterRoutes registers the log level routes. They must be mounted
// behind the admin session middleware.
func (h *LogLevelHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/admin/log-level", h.GetLevel)
	r.Put("/api/admin/log-level", h.SetLevel)
}

// LogLevelResponse is the response for log level queries.
type LogLevelResponse struct {
	Level           string   `json:"level"`
	AvailableLevels []string `json:"available_levels,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LogLevelRequest is the request body for changing log level.
type LogLevelRequest struct {
	Level string `json:"level"`
}

// GetLevel returns the current log level.
func (h *LogLevelHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, r, http.StatusOK, LogLevelResponse{
		Level:           h.levels.GetLevel(),
		AvailableLevels: logging.Levels,
	})
}

// SetLevel changes the log level. The level comes from the query string or
// a JSON body.
func (h *LogLevelHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level == "" {
		var req LogLevelRequest
		if err := decodeJSON(r, &req); err != nil {
			h.WriteError(w, r, apperrors.MissingField("level"))
			return
		}
		level = req.Level
	}
	if level == "" {
		h.WriteError(w, r, apperrors.MissingField("level"))
		return
	}

	previous := h.levels.GetLevel()
	if err := h.levels.SetLevel(level); err != nil {
		h.WriteError(w, r, apperrors.InvalidFormat("level", strings.Join(logging.Levels, ", ")))
		return
	}
	current := h.levels.GetLevel()

	admin := GetAdminFromContext(r.Context())
	log := middleware.LoggerWithCorrelation(r.Context(), h.logger)
	if admin != nil {
		log = log.With(zap.String("admin", admin.Email))
	}
	log.Info("log level changed by admin",
		zap.String("previous_level", previous),
		zap.String("new_level", current),
	)

	h.WriteJSON(w, r, http.StatusOK, LogLevelResponse{
		Level:   current,
		Message: fmt.Sprintf("log level changed from %s to %s", previous, current),
	})
}
