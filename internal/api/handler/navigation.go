package handler

import (
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/navigation"
	"github.com/bcnelson/helpdesk-settings/internal/service"
)

// NavigationHandler handles the section-switch guard endpoints.
type NavigationHandler struct {
	guard    *navigation.Guard
	settings *service.SettingsService
}

// NewNavigationHandler creates a new NavigationHandler.
func NewNavigationHandler(guard *navigation.Guard, settings *service.SettingsService) *NavigationHandler {
	return &NavigationHandler{guard: guard, settings: settings}
}

// switchRequest names the target by index or by section name.
type switchRequest struct {
	Target  *int   `json:"target"`
	Section string `json:"section"`
}

// confirmRequest optionally discards every unsaved edit before switching.
type confirmRequest struct {
	Discard bool `json:"discard"`
}

// Get returns the guard status.
func (h *NavigationHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.guard.Status())
}

// Switch requests a section switch. A switch held for confirmation is
// answered with 202 Accepted.
func (h *NavigationHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := -1
	switch {
	case req.Target != nil:
		target = *req.Target
	case req.Section != "":
		name, err := domain.ParseSectionName(req.Section)
		if err != nil {
			handleError(w, err)
			return
		}
		target = domain.SectionIndex(name)
	default:
		respondError(w, http.StatusBadRequest, "target or section is required")
		return
	}

	held, err := h.guard.RequestSwitch(target)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if held {
		status = http.StatusAccepted
	}
	respondJSON(w, status, h.guard.Status())
}

// Confirm applies the held switch.
func (h *NavigationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := h.guard.Confirm(); err != nil {
		handleError(w, err)
		return
	}

	if req.Discard {
		for _, name := range h.settings.Tracker().DirtySections() {
			if sec, err := h.settings.Section(name); err == nil {
				sec.Revert()
			}
		}
	}

	respondJSON(w, http.StatusOK, h.guard.Status())
}

// Cancel discards the held switch.
func (h *NavigationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.Cancel(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.guard.Status())
}
