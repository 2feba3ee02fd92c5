// Package notifications stores one-shot transient messages per dashboard
// session until the client drains them.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification
type Kind string

const (
	KindRemoteFailure          Kind = "remote_failure"
	KindAuthenticationRequired Kind = "authentication_required"
)

// Notification is a dismissible, non-fatal message for the user
type Notification struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	IssueID   string    `json:"issueId,omitempty"`
	Message   string    `json:"message"`
}

// Store queues notifications per session.
// Drain returns and removes everything queued for the session, oldest first.
type Store interface {
	Notify(ctx context.Context, sessionID string, n Notification) error
	Drain(ctx context.Context, sessionID string) ([]Notification, error)
}

// stamp fills in the ID and timestamp when the caller left them empty
func stamp(n Notification, now time.Time) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now.UTC()
	}
	return n
}
