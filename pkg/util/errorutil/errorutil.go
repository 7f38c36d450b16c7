package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API callers.
const (
	CodeTicketNotFound            = "TICKET_NOT_FOUND"
	CodeEvidenceNotFound          = "EVIDENCE_NOT_FOUND"
	CodeNotFound                  = "NOT_FOUND"
	CodeForbidden                 = "FORBIDDEN"
	CodeAssignmentForbidden       = "ASSIGNMENT_FORBIDDEN"
	CodeInvalidStatusTransition   = "INVALID_STATUS_TRANSITION"
	CodeStatusTransitionForbidden = "STATUS_TRANSITION_FORBIDDEN"
	CodeInvalidAssignee           = "INVALID_ASSIGNEE"
	CodeValidationFailed          = "VALIDATION_FAILED"
	CodeAuthRequired              = "AUTH_REQUIRED"
	CodeAuthInvalid               = "AUTH_INVALID"
	CodeInvalidCredentials        = "AUTH_INVALID_CREDENTIALS"
	CodeUserExists                = "USER_EXISTS"
	CodeTooManyRequests           = "TOO_MANY_REQUESTS"
	CodeEvidenceFileMissing       = "EVIDENCE_FILE_MISSING"
	CodeInternal                  = "INTERNAL_ERROR"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewNotFound builds a 404 for the given resource. The code is derived from the
// resource name for tickets and evidence so callers can tell them apart.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	code := CodeNotFound
	switch resource {
	case "ticket":
		code = CodeTicketNotFound
	case "evidence":
		code = CodeEvidenceNotFound
	}
	return &DomainError{
		Code:       code,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(code, message string) error {
	return NewDomainError(code, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewForbiddenCode is NewForbidden with a more specific code.
func NewForbiddenCode(code, message string) error {
	return NewDomainError(code, message, http.StatusForbidden, nil)
}

func NewConflict(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusConflict, details)
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidStatusTransition,
		fmt.Sprintf("cannot transition from %s to %s", from, to),
		http.StatusBadRequest,
		map[string]any{"from": from, "to": to})
}

func NewTransitionForbidden(from, to string) error {
	return NewDomainError(CodeStatusTransitionForbidden,
		"this status transition is not allowed for your role",
		http.StatusForbidden,
		map[string]any{"from": from, "to": to})
}

func NewInvalidAssignee(userID string) error {
	return NewDomainError(CodeInvalidAssignee, "assigned user must be an AGENT account",
		http.StatusBadRequest, map[string]any{"assigned_to_user_id": userID})
}

func NewTooManyRequests(message string) error {
	return NewDomainError(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}

func NewGone(code, message string) error {
	return NewDomainError(code, message, http.StatusGone, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is a missing-row error from any store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
