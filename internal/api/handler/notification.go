package handler

import (
	"net/http"
	"strconv"

	"github.com/bcnelson/helpdesk-settings/internal/notify"
)

// NotificationHandler exposes recent notifications.
type NotificationHandler struct {
	recorder *notify.Recorder
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(recorder *notify.Recorder) *NotificationHandler {
	return &NotificationHandler{recorder: recorder}
}

// List lists recent notifications, oldest first. ?limit=n returns the
// newest n.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	events := h.recorder.Events()

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(events) {
			events = events[len(events)-n:]
		}
	}

	respondJSON(w, http.StatusOK, nonNil(events))
}
