// Package middleware provides HTTP middleware functions.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Correlation ID constants.
const (
	// CorrelationIDHeader carries the ID shared by every request of one
	// visitor interaction, e.g. a chat exchange and the lead that follows it.
	CorrelationIDHeader = "X-Correlation-ID"
	// RequestIDHeader carries the ID unique to one request.
	RequestIDHeader = "X-Request-ID"
)

// maxIncomingIDLength bounds IDs accepted from clients.
const maxIncomingIDLength = 64

type correlationIDKey struct{}

type requestIDKey struct{}

type requestStartTimeKey struct{}

// RequestCorrelation tags each request with correlation and request IDs.
type RequestCorrelation struct {
	logger *zap.Logger
}

// NewRequestCorrelation creates a new correlation middleware.
func NewRequestCorrelation(logger *zap.Logger) *RequestCorrelation {
	return &RequestCorrelation{
		logger: logger,
	}
}

// Middleware returns the HTTP middleware handler. Client IDs are reused when
// present and sane; otherwise fresh ones are generated. Both are echoed on
// the response.
func (rc *RequestCorrelation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		correlationID := incomingID(r.Header.Get(CorrelationIDHeader))
		requestID := incomingID(r.Header.Get(RequestIDHeader))

		ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, requestStartTimeKey{}, startTime)

		w.Header().Set(CorrelationIDHeader, correlationID)
		w.Header().Set(RequestIDHeader, requestID)

		wrapped := newStatusRecorder(w)
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		rc.logger.Debug("request completed",
			zap.String("correlation_id", correlationID),
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(startTime)),
		)
	})
}

func incomingID(id string) string {
	if id == "" || len(id) > maxIncomingIDLength {
		return generateID()
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return generateID()
		}
	}
	return id
}

// statusRecorder wraps http.ResponseWriter to capture the status code. It
// forwards Flush so streamed chat responses are not buffered.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetRequestStartTime retrieves the request start time from context.
func GetRequestStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestStartTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// WithCorrelationID creates a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// generateID generates a random 128-bit hex ID.
func generateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// LoggerWithCorrelation returns a logger with correlation fields added.
func LoggerWithCorrelation(ctx context.Context, logger *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 2)

	if id := GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
