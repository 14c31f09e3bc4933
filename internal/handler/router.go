package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/middleware"
	"github.com/levelapp/funnel/internal/ratelimit"
)

// RequestTimeout bounds every route except the chat stream and the admin
// prompt check, which run as long as the provider answers.
const RequestTimeout = 30 * time.Second

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Funnel    *FunnelHandler
	Chat      *ChatHandler
	Quotes    *QuoteHandler
	Knowledge *KnowledgeHandler
	LogLevel  *LogLevelHandler

	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	ChatLimiter *ratelimit.ChatLimiter
	Logger      *zap.Logger
}

// NewRouter builds the HTTP handler of the funnel.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		panic("logger is required")
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestCorrelation(cfg.Logger).Middleware)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	base := NewBaseHandler(cfg.Logger)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, r, apperrors.NotFound("route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		base.WriteError(w, r, apperrors.ErrMethodNotAllowed)
	})

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(cfg.RateLimiter))
		}

		if cfg.Chat != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.BodySizeLimiter(middleware.MaxChatBodySize))
				if cfg.ChatLimiter != nil {
					r.Use(middleware.ChatLimit(cfg.ChatLimiter, cfg.Metrics, cfg.Logger))
				}
				r.Post("/api/chat", cfg.Chat.HandleChat)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))

			if cfg.Funnel != nil {
				r.Group(func(r chi.Router) {
					r.Use(chimw.Timeout(RequestTimeout))
					r.Use(middleware.BodySizeLimiter(middleware.MaxJSONBodySize))
					cfg.Funnel.RegisterRoutes(r)
				})
			}

			if cfg.Auth == nil {
				return
			}
			cfg.Auth.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(cfg.Auth.Middleware)
				r.Use(middleware.BodySizeLimiter(middleware.MaxAdminBodySize))

				if cfg.Chat != nil {
					cfg.Chat.RegisterAdminRoutes(r)
				}

				r.Group(func(r chi.Router) {
					r.Use(chimw.Timeout(RequestTimeout))
					cfg.Auth.RegisterAdminRoutes(r)
					if cfg.Funnel != nil {
						cfg.Funnel.RegisterAdminRoutes(r)
					}
					if cfg.Quotes != nil {
						cfg.Quotes.RegisterRoutes(r)
					}
					if cfg.Knowledge != nil {
						cfg.Knowledge.RegisterRoutes(r)
					}
					if cfg.LogLevel != nil {
						cfg.LogLevel.RegisterRoutes(r)
					}
				})
			})
		})
	})

	return r
}
