package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/validation"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondStandardError writes a StandardErrorResponse.
func respondStandardError(w http.ResponseWriter, status int, code, message, field string, details map[string]any) {
	respondJSON(w, status, &domain.StandardErrorResponse{
		Error: domain.StandardError{
			Code:    code,
			Message: message,
			Field:   field,
			Details: details,
		},
	})
}

// respondError writes an INVALID_INPUT error.
func respondError(w http.ResponseWriter, status int, message string) {
	respondStandardError(w, status, domain.ErrCodeInvalidInput, message, "", nil)
}

// respondValidationErrors writes the field errors of a failed save.
func respondValidationErrors(w http.ResponseWriter, errs validation.FieldErrors) {
	fields := make(map[string]any, len(errs))
	for k, v := range errs {
		fields[k] = v
	}
	var first string
	if names := errs.Fields(); len(names) > 0 {
		first = names[0]
	}
	respondStandardError(w, http.StatusUnprocessableEntity, domain.ErrCodeValidationError,
		errs.Error(), first, map[string]any{"fields": fields})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, err error) {
	var fieldErrs validation.FieldErrors
	var persistErr *domain.PersistenceError

	switch {
	case errors.As(err, &fieldErrs):
		respondValidationErrors(w, fieldErrs)
	case errors.Is(err, domain.ErrSaveInProgress):
		respondStandardError(w, http.StatusConflict, domain.ErrCodeSaveInProgress, "a save of this section is already in progress", "", nil)
	case errors.Is(err, domain.ErrAlreadyExists):
		respondStandardError(w, http.StatusConflict, domain.ErrCodeResourceAlreadyExists, "already exists", "", nil)
	case errors.As(err, &persistErr):
		respondStandardError(w, http.StatusBadGateway, domain.ErrCodePersistenceError, persistErr.Error(), "", nil)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownSection),
		errors.Is(err, domain.ErrPriorityNotFound):
		respondStandardError(w, http.StatusNotFound, domain.ErrCodeResourceNotFound, err.Error(), "", nil)
	case errors.Is(err, domain.ErrNoPendingNavigation):
		respondStandardError(w, http.StatusConflict, domain.ErrCodeNavigationConflict, "no section switch is awaiting confirmation", "", nil)
	case errors.Is(err, domain.ErrInvalidSection),
		errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidInput):
		respondStandardError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, err.Error(), "", nil)
	default:
		respondStandardError(w, http.StatusInternalServerError, domain.ErrCodeInternalError, "internal server error", "", nil)
	}
}

// decodeJSON decodes JSON from request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}
