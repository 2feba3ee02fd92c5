package issues

import (
	"context"

	"github.com/UjjawalMishra93/civic-issue-system/internal/realtime"
)

// Service defines the read side of issues used by the citizen dashboard
type Service interface {
	// FetchIssues returns every issue, most upvoted first
	FetchIssues(ctx context.Context) ([]*Issue, error)

	// ListIssues returns the issues matching a dashboard tab / district filter
	ListIssues(ctx context.Context, filter Filter) ([]*Issue, error)

	// GetIssue retrieves a single issue by ID
	GetIssue(ctx context.Context, id string) (*Issue, error)

	// FetchUserUpvotes returns the set of issue IDs the user has upvoted
	FetchUserUpvotes(ctx context.Context, userID string) (map[string]struct{}, error)

	// OnChange registers a handler for issue/upvote change notifications.
	// The returned func removes the handler.
	OnChange(handler realtime.Handler) func()
}

// Repository defines the data access interface for issues
type Repository interface {
	// List returns issues matching the filter with join-derived upvote counts,
	// ordered by upvote count desc, then created_at desc
	List(ctx context.Context, filter Filter) ([]*Issue, error)

	// GetByID retrieves an issue by ID
	// Returns ErrIssueNotFound if it doesn't exist
	GetByID(ctx context.Context, id string) (*Issue, error)
}

// UpvoteIndex lists which issues a user has upvoted
type UpvoteIndex interface {
	ListIssueIDsByUser(ctx context.Context, userID string) ([]string, error)
}

// ChangeSource delivers change notifications for issues and upvotes
type ChangeSource interface {
	OnChange(handler realtime.Handler) func()
}
