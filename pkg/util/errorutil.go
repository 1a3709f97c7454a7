package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

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
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInvalidTransition rejects a lifecycle operation attempted from a state
// that does not permit it. Callers must not retry.
func NewInvalidTransition(current, requested string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["current_status"] = current
	details["requested_status"] = requested
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("cannot transition from %s to %s", current, requested),
		http.StatusUnprocessableEntity, details)
}

// NewConflict reports a lost race; the caller should refetch rather than retry.
func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewOutOfWindow(message string) error {
	return NewDomainError("OUT_OF_WINDOW", message, http.StatusUnprocessableEntity, nil)
}

func NewAlreadyCheckedIn(engineerID string) error {
	return NewDomainError("ALREADY_CHECKED_IN", "engineer is already checked in",
		http.StatusConflict, map[string]any{"engineer_id": engineerID})
}

func NewNotCheckedIn(engineerID string) error {
	return NewDomainError("NOT_CHECKED_IN", "engineer is not checked in",
		http.StatusConflict, map[string]any{"engineer_id": engineerID})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewNotAuthorized(message string) error {
	return NewDomainError("NOT_AUTHORIZED", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
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
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
