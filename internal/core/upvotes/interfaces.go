package upvotes

import "context"

// Backend is the remote mutation surface the dashboard reconciler writes through
type Backend interface {
	// InsertUpvote records that userID upvoted issueID.
	// Returns ErrUpvoteAlreadyExists if the pair already exists.
	InsertUpvote(ctx context.Context, issueID, userID string) error

	// DeleteUpvote removes the user's upvote.
	// Deleting a non-existent upvote is not an error.
	DeleteUpvote(ctx context.Context, issueID, userID string) error
}

// Repository defines the data access interface for upvotes
type Repository interface {
	// Create inserts an upvote
	// Returns ErrUpvoteAlreadyExists on unique (issue_id, user_id) violation
	// and ErrIssueNotFound when the issue doesn't exist
	Create(ctx context.Context, upvote *Upvote) error

	// Delete removes the upvote for the pair
	// Idempotent: returns nil if no row matched
	Delete(ctx context.Context, issueID, userID string) error

	// ListIssueIDsByUser returns the IDs of every issue the user upvoted
	ListIssueIDsByUser(ctx context.Context, userID string) ([]string, error)
}
