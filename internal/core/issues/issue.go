package issues

import "time"

// Status is the lifecycle state of a reported issue
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
)

// Valid reports whether s is one of the known issue statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Issue is a citizen report as displayed on the dashboard.
// UpvoteCount is derived from issue_upvotes at fetch time; the rest of the
// fields are payload the upvote logic never inspects.
type Issue struct {
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Category    string    `json:"category,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	District    string    `json:"district,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	ReporterID  string    `json:"reporterId"`
	UpvoteCount int       `json:"upvoteCount"`
}

// AllDistricts is the dashboard's "no district filter" value
const AllDistricts = "All"

// Filter narrows an issue listing. Zero values mean "any".
type Filter struct {
	Status     Status
	District   string
	ReporterID string
	Limit      int
	Offset     int
}
