package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

const testReporter = "test-reporter"

// setupTestDB connects to TEST_DATABASE_URL and runs migrations.
// Tests are skipped when it isn't set.
func setupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../migrations"), "Failed to run migrations")

	t.Cleanup(func() {
		cleanupIssues(t, db)
		_ = db.Close()
	})
	return db
}

// cleanupIssues removes test issues; upvotes go with them via ON DELETE CASCADE
func cleanupIssues(t *testing.T, db *sql.DB) {
	_, err := db.Exec("DELETE FROM issues WHERE reporter_id LIKE 'test-%'")
	require.NoError(t, err, "Failed to cleanup issues")
}

// createTestIssue inserts an issue and returns its ID
func createTestIssue(t *testing.T, db *sql.DB, title, status, district string) string {
	query := `
		INSERT INTO issues (reporter_id, title, status, district)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id string
	err := db.QueryRowContext(context.Background(), query, testReporter, title, status, district).Scan(&id)
	require.NoError(t, err, "Failed to create test issue")
	return id
}
