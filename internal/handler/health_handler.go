package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/middleware"
)

// HealthChecker defines the interface for checking a backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AIHealthChecker defines the interface for checking the LLM provider.
type AIHealthChecker interface {
	IsCircuitOpen() bool
}

// ReadinessChecker reports whether the process accepts new work.
type ReadinessChecker interface {
	IsReady() bool
}

// Component health states.
const (
	statusOK        = "ok"
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
	statusDisabled  = "disabled"
)

// HealthHandler handles health check HTTP requests.
type HealthHandler struct {
	store     HealthChecker
	cache     HealthChecker
	llm       AIHealthChecker
	readiness ReadinessChecker
	version   string
	logger    *zap.Logger
}

// HealthHandlerConfig holds configuration for HealthHandler. Store and Cache
// are nil when the matching backend is not configured.
type HealthHandlerConfig struct {
	Store     HealthChecker
	Cache     HealthChecker
	LLM       AIHealthChecker
	Readiness ReadinessChecker
	Version   string
	Logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler with all required dependencies.
func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	if cfg.Logger == nil {
		panic("logger is required")
	}
	return &HealthHandler{
		store:     cfg.Store,
		cache:     cfg.Cache,
		llm:       cfg.LLM,
		readiness: cfg.Readiness,
		version:   cfg.Version,
		logger:    cfg.Logger,
	}
}

// RegisterRoutes registers health routes on the router.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReadiness)
	r.Get("/live", h.HandleLiveness)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string                     `json:"status"`
	Version string                     `json:"version,omitempty"`
	Checks  map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleHealth reports every dependency. Only the store is critical: without
// the cache prompts are compiled on every chat, and with the provider down
// the rest of the funnel still works.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	log := middleware.LoggerWithCorrelation(r.Context(), h.logger)
	response := HealthResponse{
		Status:  statusOK,
		Version: h.version,
		Checks:  make(map[string]ComponentHealth),
	}

	hasCriticalFailure := false
	hasDegradation := false

	if h.store == nil {
		response.Checks["storage"] = ComponentHealth{
			Status:  statusDisabled,
			Message: "no storage configured, serving built-in knowledge",
		}
	} else if err := h.store.Ping(ctx); err != nil {
		hasCriticalFailure = true
		response.Checks["storage"] = ComponentHealth{Status: statusUnhealthy, Message: err.Error()}
		log.Error("storage health check failed", zap.Error(err))
	} else {
		response.Checks["storage"] = ComponentHealth{Status: statusHealthy}
	}

	if h.cache == nil {
		response.Checks["prompt_cache"] = ComponentHealth{Status: statusDisabled}
	} else if err := h.cache.Ping(ctx); err != nil {
		hasDegradation = true
		response.Checks["prompt_cache"] = ComponentHealth{Status: statusDegraded, Message: err.Error()}
		log.Warn("prompt cache health check failed", zap.Error(err))
	} else {
		response.Checks["prompt_cache"] = ComponentHealth{Status: statusHealthy}
	}

	if h.llm != nil {
		if h.llm.IsCircuitOpen() {
			hasDegradation = true
			response.Checks["llm"] = ComponentHealth{
				Status:  statusDegraded,
				Message: "circuit breaker open - chat temporarily unavailable",
			}
			log.Warn("LLM circuit breaker is open")
		} else {
			response.Checks["llm"] = ComponentHealth{Status: statusHealthy}
		}
	}

	if hasCriticalFailure {
		response.Status = statusUnhealthy
	} else if hasDegradation {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")

	statusCode := http.StatusOK
	if response.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Debug("failed to write health response", zap.Error(err))
	}
}

// HandleReadiness returns a simple readiness probe response. It fails once
// shutdown has begun so the load balancer stops routing here.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil && !h.readiness.IsReady() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			middleware.LoggerWithCorrelation(r.Context(), h.logger).Error("readiness check failed", zap.Error(err))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// HandleLiveness returns a simple liveness probe response.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
