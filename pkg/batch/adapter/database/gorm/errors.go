package gorm

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes treated as duplicate keys.
const (
	pgUniqueViolation      = "23505"
	pgCardinalityViolation = "21000" // ON CONFLICT DO UPDATE hit the same row twice in one statement
)

// IsTableNotExistError reports whether err says a table is missing, for postgres, mysql or sqlite.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return (strings.Contains(errMsg, "relation \"") && strings.Contains(errMsg, "\" does not exist")) || // PostgreSQL
		(strings.Contains(errMsg, "Error 1146") && strings.Contains(errMsg, "doesn't exist")) || // MySQL
		strings.Contains(errMsg, "no such table:") // SQLite
}

// IsDuplicateKeyError reports whether err is a unique or primary key violation, including
// an upsert whose rows repeat a key. MySQL and SQLite apply such rows one after another.
// Dialects that translate errors yield gorm.ErrDuplicatedKey; the message checks cover the others.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUniqueViolation || pgErr.Code == pgCardinalityViolation) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "duplicate key value violates unique constraint") || // PostgreSQL
		strings.Contains(errMsg, "cannot affect row a second time") || // PostgreSQL
		strings.Contains(errMsg, "Error 1062") || strings.Contains(errMsg, "Duplicate entry") || // MySQL
		strings.Contains(errMsg, "UNIQUE constraint failed") || strings.Contains(errMsg, "PRIMARY KEY constraint failed") // SQLite
}
