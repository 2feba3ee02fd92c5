package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes this package maps to domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidTextRepr     = "22P02"
)

// pqCode returns the SQLSTATE of a lib/pq error, or "" for anything else
func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
