package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/ratelimit"
)

// ChatLimit holds a chat limiter slot for the whole life of a streamed
// response. A slot is released when the handler returns, so a client that
// disconnects mid-stream frees it as soon as the relay notices.
func ChatLimit(limiter *ratelimit.ChatLimiter, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			if err := limiter.Acquire(ip); err != nil {
				kind := "chat"
				w.Header().Set("Retry-After", "2")
				if errors.Is(err, ratelimit.ErrConcurrentLimitExceeded) {
					kind = "chat_concurrency"
					w.Header().Set("Retry-After", "5")
				}
				LoggerWithCorrelation(r.Context(), logger).Info("chat request limited",
					zap.String("ip", ip),
					zap.Error(err),
				)
				if m != nil {
					m.RecordRateLimitHit(kind)
				}
				writeError(w, apperrors.ErrRateLimited)
				return
			}
			defer limiter.Release()

			next.ServeHTTP(w, r)
		})
	}
}
