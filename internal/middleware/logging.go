package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs HTTP requests with structured logging. Server errors
// log at error level and client errors at warn.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newStatusRecorder(w)
			next.ServeHTTP(rw, r)

			level := zapcore.InfoLevel
			switch {
			case rw.statusCode >= 500:
				level = zapcore.ErrorLevel
			case rw.statusCode >= 400:
				level = zapcore.WarnLevel
			}

			LoggerWithCorrelation(r.Context(), logger).Log(level, "http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", getClientIP(r)),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}
