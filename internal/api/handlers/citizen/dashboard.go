package citizen

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers"
	"github.com/UjjawalMishra93/civic-issue-system/internal/api/middleware"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/dashboard"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

// DashboardHandler serves the citizen dashboard and its upvote toggle
type DashboardHandler struct {
	manager *dashboard.Manager
	cookies *SessionCookies
	logger  *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(manager *dashboard.Manager, cookies *SessionCookies, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		manager: manager,
		cookies: cookies,
		logger:  logger,
	}
}

// ToggleResponse is returned by the upvote endpoint
type ToggleResponse struct {
	dashboard.ToggleResult
}

// RemoteFailureResponse carries the rolled-back state alongside the error
type RemoteFailureResponse struct {
	handlers.ErrorResponse
	Issue *dashboard.ToggleResult `json:"issue,omitempty"`
}

// HandleGetDashboard opens (or reuses) the caller's session and returns its view
// GET /api/dashboard?status=Pending&district=Ranchi&mine=true
func (h *DashboardHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := parseViewFilter(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if middleware.GetUser(r) == nil {
		handleServiceError(w, dashboard.ErrAuthenticationRequired)
		return
	}

	sessionID, err := h.cookies.Ensure(w, r)
	if err != nil {
		h.logger.Error("failed to issue session cookie", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
		return
	}

	rec, err := h.manager.Open(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, filter.apply(rec.Snapshot()))
}

// HandleRefresh refetches the session's issues and upvotes.
// Only the user the session was loaded for may refresh it.
// POST /api/dashboard/refresh
func (h *DashboardHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.session(w, r)
	if !ok {
		return
	}
	if user := middleware.GetUser(r); user == nil || user.ID != rec.Owner() {
		handleServiceError(w, dashboard.ErrAuthenticationRequired)
		return
	}

	if err := rec.Refresh(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, rec.Snapshot())
}

// HandleClose discards the session's state (navigation away / logout)
// DELETE /api/dashboard
func (h *DashboardHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := h.cookies.ID(r); ok {
		h.manager.Close(sessionID)
	}
	if err := h.cookies.Clear(w, r); err != nil {
		h.logger.Warn("failed to clear session cookie", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleUpvote flips the caller's upvote on an issue
// POST /api/issues/{issueID}/upvote
func (h *DashboardHandler) HandleToggleUpvote(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "issueID")
	if issueID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "issueID is required")
		return
	}

	rec, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := rec.Toggle(r.Context(), issueID)
	if err != nil {
		if errors.Is(err, dashboard.ErrRemoteFailure) {
			h.logger.Warn("upvote toggle failed", "error", err, "issue", issueID)
			handlers.WriteJSON(w, http.StatusBadGateway, RemoteFailureResponse{
				ErrorResponse: handlers.ErrorResponse{
					Error:   "RemoteFailure",
					Message: "Couldn't save your upvote. Please try again.",
				},
				Issue: result,
			})
			return
		}
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, ToggleResponse{ToggleResult: *result})
}

// session resolves the caller's open reconciler or writes the error response
func (h *DashboardHandler) session(w http.ResponseWriter, r *http.Request) (*dashboard.Reconciler, bool) {
	sessionID, ok := h.cookies.ID(r)
	if !ok {
		if middleware.GetUser(r) == nil {
			handleServiceError(w, dashboard.ErrAuthenticationRequired)
		} else {
			handleServiceError(w, dashboard.ErrSessionNotFound)
		}
		return nil, false
	}

	rec, err := h.manager.Get(sessionID)
	if err != nil {
		if middleware.GetUser(r) == nil {
			err = dashboard.ErrAuthenticationRequired
		}
		handleServiceError(w, err)
		return nil, false
	}
	return rec, true
}

// viewFilter narrows a snapshot to one dashboard tab
type viewFilter struct {
	status   issues.Status
	district string
	mine     bool
}

func parseViewFilter(r *http.Request) (viewFilter, error) {
	q := r.URL.Query()

	f := viewFilter{
		status:   issues.Status(q.Get("status")),
		district: q.Get("district"),
		mine:     q.Get("mine") == "true",
	}
	if f.status != "" && !f.status.Valid() {
		return viewFilter{}, issues.ErrInvalidStatus
	}
	if strings.EqualFold(f.district, issues.AllDistricts) {
		f.district = ""
	}
	return f, nil
}

func (f viewFilter) apply(view dashboard.View) dashboard.View {
	if f.status == "" && f.district == "" && !f.mine {
		return view
	}

	filtered := make([]dashboard.IssueView, 0, len(view.Issues))
	for _, iv := range view.Issues {
		if f.status != "" && iv.Status != f.status {
			continue
		}
		if f.district != "" && iv.District != f.district {
			continue
		}
		if f.mine && iv.ReporterID != view.UserID {
			continue
		}
		filtered = append(filtered, iv)
	}
	view.Issues = filtered
	return view
}
