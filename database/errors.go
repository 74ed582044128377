package database

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/701789262a/backend-dailychat/errors"
)

// IsBusyError reports SQLite lock contention, which clears on retry.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError checks for a unique constraint violation. Requires the
// DB to be opened with TranslateError, which Open does.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// FromDatabase converts a database error to an AppError.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	switch {
	case IsNotFoundError(err):
		return apperrors.NotFound(resource, id)
	case IsDuplicateError(err):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case IsBusyError(err):
		e := apperrors.New(apperrors.ErrCodeDatabaseError, "Database is busy. Please try again.", http.StatusServiceUnavailable)
		e.Retryable = true
		return e.WithCause(err)
	default:
		return apperrors.DatabaseError(err)
	}
}
