package dashboard

import (
	"context"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/users"
	"github.com/UjjawalMishra93/civic-issue-system/internal/notifications"
)

// IssueStore is the read side the reconciler loads and refreshes from
type IssueStore interface {
	FetchIssues(ctx context.Context) ([]*issues.Issue, error)
	FetchUserUpvotes(ctx context.Context, userID string) (map[string]struct{}, error)
}

// AuthProvider resolves the signed-in user for a request
type AuthProvider interface {
	// CurrentUser returns nil when nobody is signed in
	CurrentUser(ctx context.Context) *users.User
}

// NotificationSink displays one-shot transient messages to a session
type NotificationSink interface {
	Notify(ctx context.Context, sessionID string, n notifications.Notification) error
}
