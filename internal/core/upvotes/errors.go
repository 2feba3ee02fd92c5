package upvotes

import (
	"errors"
	"fmt"
)

var (
	// ErrUpvoteAlreadyExists indicates the user already upvoted this issue
	ErrUpvoteAlreadyExists = errors.New("upvote already exists")

	// ErrIssueNotFound indicates the issue being upvoted doesn't exist
	ErrIssueNotFound = errors.New("issue not found")
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
