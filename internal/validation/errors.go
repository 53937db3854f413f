package validation

import (
	"fmt"
	"maps"
	"slices"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// FieldErrors maps a field name to its validation message.
// A field carries at most one message: the first failing rule wins.
type FieldErrors map[string]string

// Error implements the error interface.
func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	fields := e.Fields()
	first := fmt.Sprintf("%s: %s", fields[0], e[fields[0]])
	if len(fields) == 1 {
		return first
	}
	return fmt.Sprintf("%s (and %d more errors)", first, len(fields)-1)
}

// Add records a message for a field unless the field already has one.
func (e FieldErrors) Add(field, message string) {
	if _, ok := e[field]; ok {
		return
	}
	e[field] = message
}

// HasErrors returns true if there are any validation errors.
func (e FieldErrors) HasErrors() bool {
	return len(e) > 0
}

// Fields returns the failing field names in sorted order.
func (e FieldErrors) Fields() []string {
	return slices.Sorted(maps.Keys(e))
}

// Unwrap lets callers match validation failures with errors.Is.
func (e FieldErrors) Unwrap() error {
	return domain.ErrValidationFailed
}

// Errors holds the last validation result of every section.
type Errors map[domain.SectionName]FieldErrors
