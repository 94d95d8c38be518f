// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer maps them to status
// codes with errors.Is, so no layer below the handlers knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrDanglingRef = errors.New("dangling reference")
	ErrForbidden   = errors.New("forbidden")

	// ErrConcurrentUpdate marks a lost optimistic version check. It wraps
	// ErrConflict, so callers that only know the taxonomy still map it to
	// a conflict while retry loops can match it precisely.
	ErrConcurrentUpdate = fmt.Errorf("concurrent update: %w", ErrConflict)
)

type AppError struct {
	Err     error  // sentinel this error wraps
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a username or email that is
// already taken.
func Conflict(field, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q is already taken", field, value),
		Field:   field,
	}
}

// ConcurrentModification reports a write that lost the store's optimistic
// version check: the record changed between the caller's read and its write.
func ConcurrentModification(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConcurrentUpdate,
		Message: fmt.Sprintf("%s %s was modified concurrently", resource, id),
	}
}

// DanglingReference reports a write that would leave a stored id pointing at
// nothing: deleting an entity that users still reference.
func DanglingReference(kind, id string, refCount int) *AppError {
	return &AppError{
		Err:     ErrDanglingRef,
		Message: fmt.Sprintf("%s %s is still referenced by %d user(s)", kind, id, refCount),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
