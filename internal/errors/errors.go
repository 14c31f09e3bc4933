// Package errors provides the application error type used across the funnel
// backend: machine-readable codes, error classification and HTTP status mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/levelapp/funnel/internal/validation"
)

// Code represents an application error code.
type Code string

// Error codes for different error categories.
const (
	// Authentication errors
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeSessionExpired     Code = "SESSION_EXPIRED"

	// Validation errors
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeMissingField   Code = "MISSING_FIELD"
	CodeInvalidFormat  Code = "INVALID_FORMAT"
	CodeTooLarge       Code = "PAYLOAD_TOO_LARGE"

	// Resource errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"

	// External service errors
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeProviderError      Code = "PROVIDER_ERROR"
	CodeCircuitOpen        Code = "CIRCUIT_OPEN"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeTimeout            Code = "TIMEOUT"

	// Internal errors
	CodeInternal Code = "INTERNAL_ERROR"
	CodeDatabase Code = "DATABASE_ERROR"
	CodeConfig   Code = "CONFIG_ERROR"
)

// Kind represents the kind of error for classification.
type Kind int

const (
	// KindUnknown is an unknown error kind.
	KindUnknown Kind = iota
	// KindUser indicates a caller-caused error (bad input, unauthorized, etc.).
	KindUser
	// KindSystem indicates a system error (store down, misconfiguration).
	KindSystem
	// KindTransient indicates a temporary error that may succeed later.
	KindTransient
)

// Error is the base application error type.
type Error struct {
	// Code is the machine-readable error code.
	Code Code `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Fields holds per-field details of validation failures.
	Fields validation.ValidationErrors `json:"fields,omitempty"`
	// Kind classifies the error for handling decisions.
	Kind Kind `json:"-"`
	// Op is the operation being performed (e.g., "KnowledgeService.Restore").
	Op string `json:"-"`
	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthorized, CodeInvalidCredentials, CodeSessionExpired:
		return http.StatusUnauthorized
	case CodeValidation, CodeInvalidRequest, CodeMissingField, CodeInvalidFormat:
		return http.StatusBadRequest
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeProviderError, CodeCircuitOpen:
		return http.StatusBadGateway
	case CodeServiceUnavailable, CodeDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsRetriable returns true if the error may succeed later.
func (e *Error) IsRetriable() bool {
	return e.Kind == KindTransient
}

// IsUserError returns true if the error was caused by the caller.
func (e *Error) IsUserError() bool {
	return e.Kind == KindUser
}

// ErrorResponse represents the JSON response for API errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error details in API responses.
type ErrorDetail struct {
	Code    Code                        `json:"code"`
	Message string                      `json:"message"`
	Fields  validation.ValidationErrors `json:"fields,omitempty"`
}

// ToResponse converts an Error to an API response.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
			Fields:  e.Fields,
		},
	}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, op string, code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
		Op:      op,
		Err:     err,
	}
}

// WrapWithOp wraps an existing error preserving its code but adding operation context.
func WrapWithOp(err error, op string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Code:    e.Code,
			Message: e.Message,
			Fields:  e.Fields,
			Kind:    e.Kind,
			Op:      op,
			Err:     e.Err,
		}
	}
	return &Error{
		Code:    CodeInternal,
		Message: err.Error(),
		Kind:    KindSystem,
		Op:      op,
		Err:     err,
	}
}

func kindForCode(code Code) Kind {
	switch code {
	case CodeUnauthorized, CodeInvalidCredentials, CodeSessionExpired:
		return KindUser
	case CodeValidation, CodeInvalidRequest, CodeMissingField, CodeInvalidFormat:
		return KindUser
	case CodeNotFound, CodeConflict, CodeTooLarge, CodeMethodNotAllowed:
		return KindUser
	case CodeRateLimited, CodeTimeout, CodeCircuitOpen, CodeProviderError, CodeServiceUnavailable:
		return KindTransient
	default:
		return KindSystem
	}
}

var (
	// ErrUnauthorized indicates missing or invalid authentication.
	ErrUnauthorized = New(CodeUnauthorized, "authentication required")

	// ErrInvalidCredentials indicates wrong email or password.
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid email or password")

	// ErrSessionExpired indicates the session has expired.
	ErrSessionExpired = New(CodeSessionExpired, "session has expired")

	// ErrTooLarge indicates a request body over the route's limit.
	ErrTooLarge = New(CodeTooLarge, "request body too large")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = New(CodeRateLimited, "rate limit exceeded")

	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen = New(CodeCircuitOpen, "service temporarily unavailable")

	// ErrMethodNotAllowed indicates a known route called with the wrong method.
	ErrMethodNotAllowed = New(CodeMethodNotAllowed, "method not allowed")

	// ErrStoreNotConfigured indicates no storage backend was configured.
	ErrStoreNotConfigured = New(CodeServiceUnavailable, "storage is not configured")
)

// NotFound creates a not found error for a specific resource.
func NotFound(resource string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Kind:    KindUser,
	}
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: message,
		Kind:    KindUser,
	}
}

// ValidationFailed creates a validation error with per-field details.
func ValidationFailed(message string, fields validation.ValidationErrors) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Fields:  fields,
		Kind:    KindUser,
	}
}

// InvalidRequest creates an error for a request that cannot be processed as sent.
func InvalidRequest(message string) *Error {
	return &Error{
		Code:    CodeInvalidRequest,
		Message: message,
		Kind:    KindUser,
	}
}

// MissingField creates a missing field validation error.
func MissingField(field string) *Error {
	return &Error{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Kind:    KindUser,
	}
}

// InvalidFormat creates an invalid format validation error.
func InvalidFormat(field, expected string) *Error {
	return &Error{
		Code:    CodeInvalidFormat,
		Message: fmt.Sprintf("invalid format for %s: expected %s", field, expected),
		Kind:    KindUser,
	}
}

// DatabaseError creates a storage error with the underlying cause.
func DatabaseError(op string, err error) *Error {
	return &Error{
		Code:    CodeDatabase,
		Message: "database operation failed",
		Kind:    KindSystem,
		Op:      op,
		Err:     err,
	}
}

// ServiceUnavailable creates an error for an unreachable collaborator.
func ServiceUnavailable(service string, err error) *Error {
	return &Error{
		Code:    CodeServiceUnavailable,
		Message: fmt.Sprintf("%s is unavailable", service),
		Kind:    KindTransient,
		Err:     err,
	}
}

// ProviderError creates an LLM provider error.
func ProviderError(provider string, err error) *Error {
	return &Error{
		Code:    CodeProviderError,
		Message: fmt.Sprintf("%s provider error", provider),
		Kind:    KindTransient,
		Err:     err,
	}
}

// InternalError creates a generic internal error.
func InternalError(message string, err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Message: message,
		Kind:    KindSystem,
		Err:     err,
	}
}

// GetCode extracts the error code from an error, returning CodeInternal for non-app errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status from an error, returning 500 for non-app errors.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsRetriable checks if an error is retriable.
func IsRetriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetriable()
	}
	return false
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return GetCode(err) == CodeConflict
}

// IsUserError checks if an error was caused by the caller.
func IsUserError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsUserError()
	}
	return false
}
