package handler

import (
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/service"
)

// SLAHandler handles SLA policy and ticket priority endpoints.
type SLAHandler struct {
	settings *service.SettingsService
}

// NewSLAHandler creates a new SLAHandler.
func NewSLAHandler(settings *service.SettingsService) *SLAHandler {
	return &SLAHandler{settings: settings}
}

// ListPolicies lists the canonical SLA policies of the organization.
func (h *SLAHandler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	sla := h.settings.SLA()
	if sla == nil {
		respondJSON(w, http.StatusOK, []domain.SLAPolicy{})
		return
	}

	policies, err := sla.FetchPolicies(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nonNil(policies))
}

// SavePolicy creates or updates the policy of one ticket priority.
func (h *SLAHandler) SavePolicy(w http.ResponseWriter, r *http.Request) {
	var form domain.PolicyForm
	if err := decodeJSON(r, &form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	policy, err := h.settings.SavePolicy(r.Context(), form)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, policy)
}

// ListPriorities lists the ticket priorities of the organization.
func (h *SLAHandler) ListPriorities(w http.ResponseWriter, r *http.Request) {
	sla := h.settings.SLA()
	if sla == nil {
		respondJSON(w, http.StatusOK, []domain.TicketPriority{})
		return
	}

	priorities, err := sla.Priorities(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, nonNil(priorities))
}
