package dashboard

import "errors"

var (
	// ErrAuthenticationRequired indicates there is no signed-in user, or the
	// signed-in user is not the one the session was loaded for
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrOperationInProgress indicates a toggle for the same issue is still pending
	ErrOperationInProgress = errors.New("upvote operation already in progress")

	// ErrRemoteFailure indicates the remote upvote mutation failed and the
	// optimistic change was rolled back
	ErrRemoteFailure = errors.New("remote upvote mutation failed")

	// ErrIssueNotFound indicates the issue isn't part of the session's issues
	ErrIssueNotFound = errors.New("issue not found in dashboard")

	// ErrSessionNotFound indicates no dashboard session exists for the ID
	ErrSessionNotFound = errors.New("dashboard session not found")
)
