package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when an operation targets an unknown record id.
	ErrRecordNotFound = errors.New("lifecycle record not found")

	// ErrDuplicateRecord is returned when a record id already exists.
	ErrDuplicateRecord = errors.New("lifecycle record already exists")
)

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite3", "sqlite")
	Operation string // Operation that failed ("create_record", "aggregate", ...)
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

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// HashError represents a failure to hash a file's content.
type HashError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *HashError) Error() string {
	return fmt.Sprintf("hash error [path=%s]: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *HashError) Unwrap() error {
	return e.Cause
}
