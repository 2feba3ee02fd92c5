package dashboard

import (
	"time"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

// IssueView is an issue as rendered for the session's user
type IssueView struct {
	issues.Issue
	Upvoted bool `json:"upvoted"`
	Pending bool `json:"pending"`
}

// View is a consistent copy of a session's state
type View struct {
	RefreshedAt time.Time   `json:"refreshedAt"`
	SessionID   string      `json:"sessionId"`
	UserID      string      `json:"userId"`
	Issues      []IssueView `json:"issues"`
	Version     uint64      `json:"version"`
}

// Issue returns the view of a single issue
func (v View) Issue(id string) (IssueView, bool) {
	for _, iv := range v.Issues {
		if iv.ID == id {
			return iv, true
		}
	}
	return IssueView{}, false
}

// ToggleResult is the membership state after a toggle settles
type ToggleResult struct {
	IssueID     string `json:"issueId"`
	UpvoteCount int    `json:"upvoteCount"`
	Upvoted     bool   `json:"upvoted"`
}

// Observer is called with a fresh View after every state change
type Observer func(View)
