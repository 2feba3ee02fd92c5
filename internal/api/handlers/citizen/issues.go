package citizen

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/UjjawalMishra93/civic-issue-system/internal/api/handlers"
	"github.com/UjjawalMishra93/civic-issue-system/internal/api/middleware"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/dashboard"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

// IssueReader is the read side of issues.Service used by the browse endpoints
type IssueReader interface {
	ListIssues(ctx context.Context, filter issues.Filter) ([]*issues.Issue, error)
	GetIssue(ctx context.Context, id string) (*issues.Issue, error)
}

// IssuesHandler serves filtered, paginated issue listings straight from the
// store, without a dashboard session
type IssuesHandler struct {
	issues IssueReader
	logger *slog.Logger
}

// ListIssuesResponse is the body of GET /api/issues
type ListIssuesResponse struct {
	Issues []*issues.Issue `json:"issues"`
}

// NewIssuesHandler creates a new issues handler
func NewIssuesHandler(reader IssueReader, logger *slog.Logger) *IssuesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssuesHandler{issues: reader, logger: logger}
}

// HandleList lists issues, most upvoted first
// GET /api/issues?status=Pending&district=Ranchi&mine=true&limit=20&offset=40
func (h *IssuesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := issues.Filter{
		Status:   issues.Status(q.Get("status")),
		District: q.Get("district"),
	}

	if q.Get("mine") == "true" {
		user := middleware.GetUser(r)
		if user == nil {
			handleServiceError(w, dashboard.ErrAuthenticationRequired)
			return
		}
		filter.ReporterID = user.ID
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		handleServiceError(w, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		handleServiceError(w, err)
		return
	}

	list, err := h.issues.ListIssues(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, ListIssuesResponse{Issues: list})
}

// HandleGet returns a single issue
// GET /api/issues/{issueID}
func (h *IssuesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	issue, err := h.issues.GetIssue(r.Context(), chi.URLParam(r, "issueID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, issue)
}

func intParam(value, field string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, issues.NewValidationError(field, "must be an integer")
	}
	return n, nil
}
