package dto

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/workorder-service/pkg/util/errorutil"
)

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]any

func (f fieldErrors) length(field, value string, min, max int) {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		f[field] = fmt.Sprintf("must be between %d and %d characters", min, max)
	}
}

func (f fieldErrors) uuid(field, value string) {
	if _, err := uuid.Parse(value); err != nil {
		f[field] = "must be a valid UUID"
	}
}

func (f fieldErrors) oneOf(field string, ok bool, allowed ...string) {
	if !ok {
		f[field] = "must be one of " + strings.Join(allowed, ", ")
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError(message, map[string]any(f))
}
