package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownField        = errors.New("unknown field")
	ErrUnknownSection      = errors.New("unknown section")
	ErrSaveInProgress      = errors.New("save already in progress")
	ErrValidationFailed    = errors.New("validation failed")
	ErrPriorityNotFound    = errors.New("ticket priority not found")
	ErrMissingOrganization = errors.New("organization id is required")
	ErrNoPendingNavigation = errors.New("no pending navigation")
	ErrInvalidSection      = errors.New("invalid section index")
)

// Error codes for standardized API error responses.
const (
	ErrCodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	ErrCodeResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ErrCodeInvalidInput          = "INVALID_INPUT"
	ErrCodeValidationError       = "VALIDATION_ERROR"
	ErrCodeSaveInProgress        = "SAVE_IN_PROGRESS"
	ErrCodePersistenceError      = "PERSISTENCE_ERROR"
	ErrCodeNavigationConflict    = "NAVIGATION_CONFLICT"
	ErrCodePreconditionFailed    = "PRECONDITION_FAILED"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// StandardError represents a standardized error response from the API.
type StandardError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StandardErrorResponse wraps a StandardError for JSON responses.
type StandardErrorResponse struct {
	Error StandardError `json:"error"`
}

// PersistenceError is a failed fetch or save against a persistence collaborator.
// Local section state is left untouched when one is returned.
type PersistenceError struct {
	Op      string
	Section SectionName
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Section, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReconciliationError is a failure of a background consistency write between
// the SLA stores. It is recorded but never reported to the user.
type ReconciliationError struct {
	Op  string
	Err error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation %s: %v", e.Op, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
