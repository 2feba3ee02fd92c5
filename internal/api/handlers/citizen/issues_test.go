package citizen

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

type mockIssueReader struct {
	mock.Mock
}

func (m *mockIssueReader) ListIssues(ctx context.Context, filter issues.Filter) ([]*issues.Issue, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*issues.Issue), args.Error(1)
}

func (m *mockIssueReader) GetIssue(ctx context.Context, id string) (*issues.Issue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*issues.Issue), args.Error(1)
}

func newIssuesRouter(reader IssueReader) http.Handler {
	h := NewIssuesHandler(reader, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Use(withHeaderUser)
	r.Get("/api/issues", h.HandleList)
	r.Get("/api/issues/{issueID}", h.HandleGet)
	return r
}

func getIssues(h http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListIssues_MineUsesReporter(t *testing.T) {
	reader := new(mockIssueReader)
	want := issues.Filter{Status: issues.StatusResolved, ReporterID: "user-1", Limit: 5}
	reader.On("ListIssues", mock.Anything, want).
		Return([]*issues.Issue{{ID: "b", Status: issues.StatusResolved, ReporterID: "user-1"}}, nil)

	rec := getIssues(newIssuesRouter(reader), "/api/issues?status=Resolved&mine=true&limit=5", "user-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body ListIssuesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Issues, 1)
	assert.Equal(t, "b", body.Issues[0].ID)
	reader.AssertExpectations(t)
}

func TestListIssues_InvalidParams(t *testing.T) {
	reader := new(mockIssueReader)
	reader.On("ListIssues", mock.Anything, issues.Filter{Status: "Closed"}).Return(nil, issues.ErrInvalidStatus)
	reader.On("ListIssues", mock.Anything, issues.Filter{Offset: -1}).
		Return(nil, issues.NewValidationError("offset", "must not be negative"))
	h := newIssuesRouter(reader)

	for _, path := range []string{
		"/api/issues?status=Closed",
		"/api/issues?limit=ten",
		"/api/issues?offset=-1",
	} {
		t.Run(path, func(t *testing.T) {
			rec := getIssues(h, path, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "InvalidRequest", decodeError(t, rec).Error)
		})
	}
	reader.AssertExpectations(t)
}

func TestGetIssue(t *testing.T) {
	reader := new(mockIssueReader)
	reader.On("GetIssue", mock.Anything, "a").Return(&issues.Issue{ID: "a", Title: "Pothole on Main Road"}, nil)
	reader.On("GetIssue", mock.Anything, "zzz").Return(nil, issues.ErrIssueNotFound)
	h := newIssuesRouter(reader)

	rec := getIssues(h, "/api/issues/a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var issue issues.Issue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issue))
	assert.Equal(t, "Pothole on Main Road", issue.Title)

	rec = getIssues(h, "/api/issues/zzz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IssueNotFound", decodeError(t, rec).Error)
}
