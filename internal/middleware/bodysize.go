package middleware

import (
	"net/http"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// Body size limits per route group.
const (
	// MaxJSONBodySize bounds public form submissions (64KB).
	MaxJSONBodySize = 64 << 10

	// MaxChatBodySize bounds a chat transcript (256KB).
	MaxChatBodySize = 256 << 10

	// MaxAdminBodySize bounds back-office payloads such as knowledge content (1MB).
	MaxAdminBodySize = 1 << 20
)

// BodySizeLimiter limits the size of request bodies. A declared length over
// the limit is rejected up front; chunked bodies fail on read.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				writeError(w, apperrors.ErrTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
