package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrStorageFailure is matched by every error returned from a backend
// operation that reached the database.
var ErrStorageFailure = errors.New("storage backend failure")

// MonthRecord is one row of the monthly_budget table.
type MonthRecord struct {
	// Month is the calendar month key (YYYY-MM, UTC).
	Month string

	// SpentCents is the accumulated spend for the month.
	SpentCents float64

	// RoastCount is the number of billable events recorded.
	RoastCount int64

	// UpdatedAt is when the row was last written.
	UpdatedAt time.Time
}

// Setting is one row of the app_config table.
type Setting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// StorageError describes a failed backend operation.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite")
	Operation string // Operation that failed ("add_month_spend", "increment_usage", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches ErrStorageFailure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}
