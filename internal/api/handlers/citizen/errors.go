package citizen

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/dashboard"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

// handleServiceError converts dashboard errors to HTTP responses.
// Error names are part of the API contract (UpperCamelCase).
func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *issues.ValidationError
	switch {
	case errors.Is(err, dashboard.ErrAuthenticationRequired):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthRequired", "Please log in to continue")
	case errors.Is(err, dashboard.ErrOperationInProgress):
		handlers.WriteError(w, http.StatusConflict, "OperationInProgress", "An upvote for this issue is already being saved")
	case errors.Is(err, dashboard.ErrIssueNotFound):
		handlers.WriteError(w, http.StatusNotFound, "IssueNotFound", "The issue is not on this dashboard")
	case errors.Is(err, issues.ErrIssueNotFound):
		handlers.WriteError(w, http.StatusNotFound, "IssueNotFound", "Issue not found")
	case errors.Is(err, dashboard.ErrSessionNotFound):
		handlers.WriteError(w, http.StatusNotFound, "SessionNotFound", "Dashboard session not found; reload the dashboard")
	case errors.Is(err, issues.ErrInvalidStatus):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "status must be one of Pending, In Progress, Resolved")
	case errors.As(err, &validationErr):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", validationErr.Error())
	case errors.Is(err, dashboard.ErrRemoteFailure):
		handlers.WriteError(w, http.StatusBadGateway, "RemoteFailure", "The data service is unavailable. Please try again.")
	default:
		slog.Error("citizen handler error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
