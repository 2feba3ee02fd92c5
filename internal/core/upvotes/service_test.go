package upvotes

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUpvoteRepository struct {
	mock.Mock
}

func (m *mockUpvoteRepository) Create(ctx context.Context, upvote *Upvote) error {
	args := m.Called(ctx, upvote)
	return args.Error(0)
}

func (m *mockUpvoteRepository) Delete(ctx context.Context, issueID, userID string) error {
	args := m.Called(ctx, issueID, userID)
	return args.Error(0)
}

func (m *mockUpvoteRepository) ListIssueIDsByUser(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newTestService(repo Repository) *upvoteService {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return &upvoteService{
		repo:   repo,
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return fixed },
	}
}

func TestUpvoteService_InsertUpvote(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *Upvote) bool {
		return u.IssueID == "issue-1" && u.UserID == "user-1" && !u.CreatedAt.IsZero()
	})).Return(nil)

	require.NoError(t, service.InsertUpvote(context.Background(), "issue-1", "user-1"))
	repo.AssertExpectations(t)
}

func TestUpvoteService_InsertUpvote_ConflictPassesThrough(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(ErrUpvoteAlreadyExists)

	err := service.InsertUpvote(context.Background(), "issue-1", "user-1")
	assert.Equal(t, ErrUpvoteAlreadyExists, err)
}

func TestUpvoteService_InsertUpvote_MissingIssue(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(ErrIssueNotFound)

	err := service.InsertUpvote(context.Background(), "issue-1", "user-1")
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestUpvoteService_InsertUpvote_WrapsRepositoryError(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	dbErr := errors.New("connection refused")
	repo.On("Create", mock.Anything, mock.Anything).Return(dbErr)

	err := service.InsertUpvote(context.Background(), "issue-1", "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "failed to insert upvote")
}

func TestUpvoteService_ValidateInput(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	tests := []struct {
		name    string
		issueID string
		userID  string
		field   string
	}{
		{name: "missing issue", issueID: "", userID: "user-1", field: "issueId"},
		{name: "missing user", issueID: "issue-1", userID: "", field: "userId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, call := range []func(context.Context, string, string) error{service.InsertUpvote, service.DeleteUpvote} {
				err := call(context.Background(), tt.issueID, tt.userID)
				var validationErr *ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.field, validationErr.Field)
			}
		})
	}

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpvoteService_DeleteUpvote(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	repo.On("Delete", mock.Anything, "issue-1", "user-1").Return(nil)

	require.NoError(t, service.DeleteUpvote(context.Background(), "issue-1", "user-1"))
	repo.AssertExpectations(t)
}

func TestUpvoteService_DeleteUpvote_WrapsRepositoryError(t *testing.T) {
	repo := new(mockUpvoteRepository)
	service := newTestService(repo)

	dbErr := errors.New("deadlock detected")
	repo.On("Delete", mock.Anything, "issue-1", "user-1").Return(dbErr)

	err := service.DeleteUpvote(context.Background(), "issue-1", "user-1")
	assert.ErrorIs(t, err, dbErr)
}
