package issues

import (
	"errors"
	"fmt"
)

var (
	// ErrIssueNotFound indicates the requested issue doesn't exist
	ErrIssueNotFound = errors.New("issue not found")

	// ErrInvalidStatus indicates a status filter outside the known set
	ErrInvalidStatus = errors.New("invalid issue status: must be 'Pending', 'In Progress' or 'Resolved'")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
