package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// Recovery turns a handler panic into a 500 JSON error and logs the stack.
// http.ErrAbortHandler is re-raised so the server aborts the response.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				LoggerWithCorrelation(r.Context(), logger).Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				writeError(w, apperrors.New(apperrors.CodeInternal, "internal server error"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
