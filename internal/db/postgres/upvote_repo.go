package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/upvotes"
)

type postgresUpvoteRepo struct {
	db *sql.DB
}

// NewUpvoteRepository creates a new PostgreSQL upvote repository
func NewUpvoteRepository(db *sql.DB) upvotes.Repository {
	return &postgresUpvoteRepo{db: db}
}

// Create inserts an upvote for (issue_id, user_id)
// The primary key on the pair rejects duplicates with ErrUpvoteAlreadyExists
func (r *postgresUpvoteRepo) Create(ctx context.Context, upvote *upvotes.Upvote) error {
	query := `
		INSERT INTO issue_upvotes (issue_id, user_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, upvote.IssueID, upvote.UserID, upvote.CreatedAt).
		Scan(&upvote.CreatedAt)
	if err != nil {
		switch pqCode(err) {
		case codeUniqueViolation:
			return upvotes.ErrUpvoteAlreadyExists
		case codeForeignKeyViolation, codeInvalidTextRepr:
			return upvotes.ErrIssueNotFound
		}
		return fmt.Errorf("failed to insert upvote: %w", err)
	}

	return nil
}

// Delete removes the upvote for the pair
// Idempotent: no matching row is not an error
func (r *postgresUpvoteRepo) Delete(ctx context.Context, issueID, userID string) error {
	query := `DELETE FROM issue_upvotes WHERE issue_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, issueID, userID); err != nil {
		// A malformed issue ID can't match any row
		if pqCode(err) == codeInvalidTextRepr {
			return nil
		}
		return fmt.Errorf("failed to delete upvote: %w", err)
	}

	return nil
}

// ListIssueIDsByUser returns every issue the user has upvoted, newest first
func (r *postgresUpvoteRepo) ListIssueIDsByUser(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT issue_id
		FROM issue_upvotes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list upvotes by user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []string{}
	for rows.Next() {
		var issueID string
		if err := rows.Scan(&issueID); err != nil {
			return nil, fmt.Errorf("failed to scan upvote: %w", err)
		}
		result = append(result, issueID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upvotes: %w", err)
	}

	return result, nil
}
