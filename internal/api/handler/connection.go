package handler

import (
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/connection"
	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

// ConnectionHandler handles integration connection tests.
type ConnectionHandler struct {
	tester connection.TesterInterface
}

// NewConnectionHandler creates a new ConnectionHandler.
func NewConnectionHandler(tester connection.TesterInterface) *ConnectionHandler {
	return &ConnectionHandler{tester: tester}
}

// Test runs a connection test. A failed connection is a 200 response with
// success=false.
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req domain.ConnectionTestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		respondStandardError(w, http.StatusBadRequest, domain.ErrCodeInvalidInput, "kind is required", "kind", nil)
		return
	}

	res, err := h.tester.Test(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}
