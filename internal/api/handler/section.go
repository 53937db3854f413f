package handler

import (
	"net/http"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
	"github.com/bcnelson/helpdesk-settings/internal/service"
	"github.com/go-chi/chi/v5"
)

// SectionHandler handles settings section endpoints.
type SectionHandler struct {
	settings *service.SettingsService
}

// NewSectionHandler creates a new SectionHandler.
func NewSectionHandler(settings *service.SettingsService) *SectionHandler {
	return &SectionHandler{settings: settings}
}

// sectionResponse is a section snapshot plus the aggregate dirty flag that
// drives the unsaved-changes banner.
type sectionResponse struct {
	domain.SectionSnapshot
	AnyDirty bool `json:"anyDirty"`
}

// List lists every section with its dirty and loading state.
func (h *SectionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"sections":      h.settings.Statuses(),
		"anyDirty":      h.settings.Tracker().IsAnyDirty(),
		"dirtySections": nonNil(h.settings.Tracker().DirtySections()),
	})
}

// Get gets a section snapshot.
func (h *SectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}
	h.respondSection(w, http.StatusOK, sec)
}

// Update applies field edits to the current state of a section. Nothing is
// persisted until Save.
func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}

	var req domain.FieldUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req) == 0 {
		respondError(w, http.StatusBadRequest, "at least one field is required")
		return
	}

	if !CheckIfMatch(r, sec.Snapshot()) {
		RespondPreconditionFailed(w, sec.Snapshot())
		return
	}

	if err := sec.UpdateFields(req); err != nil {
		handleError(w, err)
		return
	}

	h.respondSection(w, http.StatusOK, sec)
}

// Save validates and persists the current state of a section.
func (h *SectionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}

	if !CheckIfMatch(r, sec.Snapshot()) {
		RespondPreconditionFailed(w, sec.Snapshot())
		return
	}

	if err := sec.Save(r.Context()); err != nil {
		handleError(w, err)
		return
	}

	h.respondSection(w, http.StatusOK, sec)
}

// Revert discards the unsaved edits of a section.
func (h *SectionHandler) Revert(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}
	sec.Revert()
	h.respondSection(w, http.StatusOK, sec)
}

// Reload fetches a section from the settings store, replacing both its
// current and baseline state.
func (h *SectionHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}
	if err := sec.Load(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	h.respondSection(w, http.StatusOK, sec)
}

// Toggle persists a single boolean setting immediately.
func (h *SectionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sec, ok := h.section(w, r)
	if !ok {
		return
	}

	var req domain.ToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := sec.Toggle(r.Context(), req.Key, req.Value); err != nil {
		handleError(w, err)
		return
	}

	h.respondSection(w, http.StatusOK, sec)
}

func (h *SectionHandler) section(w http.ResponseWriter, r *http.Request) (service.SectionHandle, bool) {
	name, err := domain.ParseSectionName(chi.URLParam(r, "name"))
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	sec, err := h.settings.Section(name)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	return sec, true
}

func (h *SectionHandler) respondSection(w http.ResponseWriter, status int, sec service.SectionHandle) {
	snap := sec.Snapshot()
	SetETagHeader(w, snap)
	respondJSON(w, status, sectionResponse{
		SectionSnapshot: snap,
		AnyDirty:        h.settings.Tracker().IsAnyDirty(),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
