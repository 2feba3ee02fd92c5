package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
)

type postgresIssueRepo struct {
	db *sql.DB
}

// NewIssueRepository creates a new PostgreSQL issue repository
func NewIssueRepository(db *sql.DB) issues.Repository {
	return &postgresIssueRepo{db: db}
}

// issueSelect derives upvote_count from issue_upvotes rather than the cached column
const issueSelect = `
	SELECT
		i.id, i.reporter_id, i.title, i.description, i.status,
		i.category, i.priority, i.district, i.latitude, i.longitude,
		i.image_url, i.created_at, i.updated_at,
		COUNT(u.user_id) AS upvote_count
	FROM issues i
	LEFT JOIN issue_upvotes u ON u.issue_id = i.id
`

// List retrieves issues matching filter, most upvoted first
func (r *postgresIssueRepo) List(ctx context.Context, filter issues.Filter) ([]*issues.Issue, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if filter.District != "" {
		args = append(args, filter.District)
		conditions = append(conditions, fmt.Sprintf("i.district = $%d", len(args)))
	}
	if filter.ReporterID != "" {
		args = append(args, filter.ReporterID)
		conditions = append(conditions, fmt.Sprintf("i.reporter_id = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(issueSelect)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(" GROUP BY i.id ORDER BY upvote_count DESC, i.created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []*issues.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, issue)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}

	return result, nil
}

// GetByID retrieves a single issue with its derived upvote count
func (r *postgresIssueRepo) GetByID(ctx context.Context, id string) (*issues.Issue, error) {
	query := issueSelect + ` WHERE i.id = $1 GROUP BY i.id`

	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == codeInvalidTextRepr {
		return nil, issues.ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (*issues.Issue, error) {
	var (
		issue     issues.Issue
		status    string
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
	)

	err := row.Scan(
		&issue.ID, &issue.ReporterID, &issue.Title, &issue.Description, &status,
		&issue.Category, &issue.Priority, &issue.District, &latitude, &longitude,
		&issue.ImageURL, &issue.CreatedAt, &issue.UpdatedAt,
		&issue.UpvoteCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}

	issue.Status = issues.Status(status)
	if latitude.Valid {
		issue.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		issue.Longitude = &longitude.Float64
	}

	return &issue, nil
}

// RecountUpvotes rebuilds the issues.upvote_count display cache from
// issue_upvotes and returns how many rows changed. Per-row change
// notifications are suppressed; one issues change is sent on commit.
func RecountUpvotes(ctx context.Context, db *sql.DB) (int64, error) {
	query := `
		UPDATE issues i
		SET upvote_count = c.n
		FROM (
			SELECT i2.id, COUNT(u.user_id) AS n
			FROM issues i2
			LEFT JOIN issue_upvotes u ON u.issue_id = i2.id
			GROUP BY i2.id
		) c
		WHERE i.id = c.id AND i.upvote_count <> c.n
	`

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start recount: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SET LOCAL civic.suppress_change_notify = 'on'`); err != nil {
		return 0, fmt.Errorf("failed to suppress change notifications: %w", err)
	}

	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to recount upvotes: %w", err)
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check recount result: %w", err)
	}

	if changed > 0 {
		// Delivered on commit; listeners do a single full refetch
		notify := `SELECT pg_notify($1, json_build_object('table', 'issues', 'type', 'UPDATE')::text)`
		if _, err := tx.ExecContext(ctx, notify, ChangeChannel); err != nil {
			return 0, fmt.Errorf("failed to send recount notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit recount: %w", err)
	}
	return changed, nil
}
