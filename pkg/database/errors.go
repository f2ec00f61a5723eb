package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("database: not found")
	// ErrActiveTimerExists is returned when inserting a second active timer
	// for one user.
	ErrActiveTimerExists = errors.New("database: active timer already exists")
	// ErrDuplicate is returned for any other unique constraint violation.
	ErrDuplicate = errors.New("database: duplicate")
)

// isUniqueViolation recognises unique constraint failures from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// isActiveTimerViolation reports whether err comes from the
// timers_one_active_per_user index rather than any other unique key.
func isActiveTimerViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == "timers_one_active_per_user"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// SQLite names the indexed column, not the index.
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE && strings.Contains(liteErr.Error(), "timers.user_id")
	}
	return false
}
