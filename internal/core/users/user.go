package users

// Role is the portal role carried in the access token
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
)

// User is the authenticated caller as resolved from the access token
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}
