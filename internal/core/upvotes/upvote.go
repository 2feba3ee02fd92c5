package upvotes

import "time"

// Upvote is a single user's upvote on an issue.
// At most one exists per (IssueID, UserID); its existence is the only record
// of whether the user has upvoted the issue.
type Upvote struct {
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	IssueID   string    `json:"issueId" db:"issue_id"`
	UserID    string    `json:"userId" db:"user_id"`
}
