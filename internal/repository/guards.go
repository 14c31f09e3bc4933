package repository

import (
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// Pagination bounds for list queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// GuardUUID fails fast when an id is the zero UUID.
func GuardUUID(id uuid.UUID, field string) error {
	if id == uuid.Nil {
		return apperrors.MissingField(field)
	}
	return nil
}

// GuardString fails fast when a required string is blank.
func GuardString(s, field string) error {
	if strings.TrimSpace(s) == "" {
		return apperrors.MissingField(field)
	}
	return nil
}

// NormalizePagination clamps limit to [1, MaxPageSize], defaulting to
// DefaultPageSize, and negative offsets to zero.
func NormalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
