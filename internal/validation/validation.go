// Package validation provides input validation for API requests.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// FieldErrors returns errors for a specific field.
func (e ValidationErrors) FieldErrors(field string) ValidationErrors {
	var result ValidationErrors
	for _, err := range e {
		if err.Field == field {
			result = append(result, err)
		}
	}
	return result
}

// Merge appends other's errors to e, prefixing their fields when prefix is set.
func (e ValidationErrors) Merge(prefix string, other ValidationErrors) ValidationErrors {
	for _, err := range other {
		if prefix != "" {
			err.Field = prefix + "." + err.Field
		}
		e = append(e, err)
	}
	return e
}

// Error codes for validation failures.
const (
	CodeRequired      = "required"
	CodeInvalidFormat = "invalid_format"
	CodeTooLong       = "too_long"
	CodeTooShort      = "too_short"
	CodeInvalidValue  = "invalid_value"
	CodeMalicious     = "malicious_content"
)

// Validator accumulates field errors for one request.
type Validator struct {
	errors ValidationErrors
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// Errors returns all accumulated validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// IsValid returns true if no validation errors occurred.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message, code string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

// Required validates that a string field is not empty.
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required", CodeRequired)
		return false
	}
	return true
}

// MaxLength validates string length doesn't exceed maximum.
func (v *Validator) MaxLength(field, value string, maxLen int) bool {
	if utf8.RuneCountInString(value) > maxLen {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", maxLen), CodeTooLong)
		return false
	}
	return true
}

// MinLength validates string length meets minimum.
func (v *Validator) MinLength(field, value string, minLen int) bool {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < minLen {
		v.AddError(field, fmt.Sprintf("must be at least %d characters", minLen), CodeTooShort)
		return false
	}
	return true
}

// Email validates an email address of the form local@domain.tld.
func (v *Validator) Email(field, value string) bool {
	if value == "" {
		return true
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
		v.AddError(field, "must be a valid email address", CodeInvalidFormat)
		return false
	}
	return true
}

// frenchPhoneRegex matches French numbers: 0X XX XX XX XX, +33 or 0033 prefixes,
// with optional space, dot or dash separators.
var frenchPhoneRegex = regexp.MustCompile(`^(?:(?:\+|00)33|0)\s*[1-9](?:[\s.-]*\d{2}){4}$`)

// FrenchPhone validates a French phone number.
func (v *Validator) FrenchPhone(field, value string) bool {
	if value == "" {
		return true
	}
	if !frenchPhoneRegex.MatchString(strings.TrimSpace(value)) {
		v.AddError(field, "must be a valid French phone number", CodeInvalidFormat)
		return false
	}
	return true
}

// uuidRegex matches UUID format.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// UUID validates a UUID format.
func (v *Validator) UUID(field, value string) bool {
	if value == "" {
		return true
	}
	if !uuidRegex.MatchString(value) {
		v.AddError(field, "must be a valid UUID", CodeInvalidFormat)
		return false
	}
	return true
}

// OneOf validates that value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) bool {
	if value == "" {
		return true
	}
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")), CodeInvalidValue)
	return false
}

// NoScriptTags validates that the value doesn't contain script tags.
func (v *Validator) NoScriptTags(field, value string) bool {
	lower := strings.ToLower(value)
	if strings.Contains(lower, "<script") || strings.Contains(lower, "javascript:") {
		v.AddError(field, "contains potentially malicious content", CodeMalicious)
		return false
	}
	return true
}

// SafeString validates a string has no control characters except newlines and tabs.
func (v *Validator) SafeString(field, value string) bool {
	for _, r := range value {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			v.AddError(field, "contains invalid control characters", CodeMalicious)
			return false
		}
	}
	return true
}

// NonNegativeInt validates that an integer is not negative.
func (v *Validator) NonNegativeInt(field string, value int) bool {
	if value < 0 {
		v.AddError(field, "must not be negative", CodeInvalidValue)
		return false
	}
	return true
}

// Range validates an integer is within range.
func (v *Validator) Range(field string, value, minVal, maxVal int) bool {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", minVal, maxVal), CodeInvalidValue)
		return false
	}
	return true
}

// SanitizeString removes null bytes and control characters from a string.
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	var builder strings.Builder
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			builder.WriteRune(' ')
		} else {
			builder.WriteRune(r)
		}
	}
	return strings.TrimSpace(builder.String())
}

// ClampPercent bounds a percentage to [0, 100].
func ClampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// PaginationConfig contains constraints for pagination parameters.
type PaginationConfig struct {
	MaxLimit     int
	DefaultLimit int
	MaxOffset    int
}

// DefaultPaginationConfig returns the admin list defaults.
func DefaultPaginationConfig() *PaginationConfig {
	return &PaginationConfig{
		MaxLimit:     200,
		DefaultLimit: 50,
		MaxOffset:    100000,
	}
}

// PaginationParams represents normalized pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// NormalizePaginationParams clamps limit and offset into the configured bounds.
func NormalizePaginationParams(limit, offset int, cfg *PaginationConfig) PaginationParams {
	if cfg == nil {
		cfg = DefaultPaginationConfig()
	}

	if limit <= 0 {
		limit = cfg.DefaultLimit
	} else if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}

	if offset < 0 {
		offset = 0
	} else if offset > cfg.MaxOffset {
		offset = cfg.MaxOffset
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}
