package store

import (
	"errors"

	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate")

	// ErrInvalidTransition is returned when a guarded status update finds
	// the row in a status the transition does not start from.
	ErrInvalidTransition = errors.New("invalid status transition")
)

const pgUniqueViolation = "23505"

// isUniqueViolation detects unique index violations on either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return sqlgraph.IsUniqueConstraintError(err)
}
