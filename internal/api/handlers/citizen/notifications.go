package citizen

import (
	"log/slog"
	"net/http"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers"
	"github.com/UjjawalMishra93/civic-issue-system/internal/notifications"
)

// NotificationsHandler drains the transient notifications of a session
type NotificationsHandler struct {
	store   notifications.Store
	cookies *SessionCookies
	logger  *slog.Logger
}

// NotificationsResponse is the body of GET /api/notifications
type NotificationsResponse struct {
	Notifications []notifications.Notification `json:"notifications"`
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(store notifications.Store, cookies *SessionCookies, logger *slog.Logger) *NotificationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationsHandler{
		store:   store,
		cookies: cookies,
		logger:  logger,
	}
}

// HandleDrain returns and clears the session's pending notifications
// GET /api/notifications
func (h *NotificationsHandler) HandleDrain(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.cookies.ID(r)
	if !ok {
		handlers.WriteJSON(w, http.StatusOK, NotificationsResponse{Notifications: []notifications.Notification{}})
		return
	}

	drained, err := h.store.Drain(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to drain notifications", "error", err, "session", sessionID)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}
	if drained == nil {
		drained = []notifications.Notification{}
	}

	handlers.WriteJSON(w, http.StatusOK, NotificationsResponse{Notifications: drained})
}
