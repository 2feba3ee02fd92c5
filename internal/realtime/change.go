// Package realtime fans change notifications for issues and upvotes out to
// dashboard sessions. Changes arrive from Postgres LISTEN/NOTIFY or from the
// hosted backend's websocket change stream.
package realtime

import (
	"context"
	"time"
)

// Tables that produce change notifications
const (
	TableIssues  = "issues"
	TableUpvotes = "issue_upvotes"
)

// ChangeType is the row operation that produced a change
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change describes a single row change. RecordID is the issue ID for both
// tables; consumers refetch rather than patching from the payload.
type Change struct {
	ReceivedAt time.Time  `json:"receivedAt"`
	Table      string     `json:"table"`
	Type       ChangeType `json:"type"`
	RecordID   string     `json:"recordId"`
}

// Handler receives change notifications
type Handler func(ctx context.Context, change Change)
