package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("not found")

	// ErrMalformed is returned when a stored record or caller input fails validation.
	ErrMalformed = errors.New("malformed")

	// ErrConflict is returned when a write would violate a one-time or uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrTransient wraps driver faults. Idempotent operations are safe to retry.
	ErrTransient = errors.New("store unavailable")
)

// dbError tags a driver error as transient while keeping the original in the chain.
func dbError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
