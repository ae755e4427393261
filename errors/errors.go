// Package errors provides error types and handling for replicated transfer operations.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a transfer operation error with context about the operation
// that failed. It wraps the underlying backend error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "delete")
	Op string

	// Backend is the backend target name (if applicable)
	Backend string

	// Object is the object name or storage key (if applicable)
	Object string

	// Err is the underlying error from the backend SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Backend != "" && e.Object != "" {
		return fmt.Sprintf("replica.%s %s/%s: %v", e.Op, e.Backend, e.Object, e.Err)
	}
	if e.Backend != "" {
		return fmt.Sprintf("replica.%s backend %s: %v", e.Op, e.Backend, e.Err)
	}
	if e.Object != "" {
		return fmt.Sprintf("replica.%s object %s: %v", e.Op, e.Object, e.Err)
	}
	return fmt.Sprintf("replica.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBackend adds backend context to an existing error.
func (e *Error) WithBackend(backend string) *Error {
	e.Backend = backend
	return e
}

// WithObject adds object context to an existing error.
func (e *Error) WithObject(object string) *Error {
	e.Object = object
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewBackendError creates a new Error with backend context.
func NewBackendError(op, backend string, err error) *Error {
	return &Error{
		Op:      op,
		Backend: backend,
		Err:     err,
	}
}

// NewObjectError creates a new Error with backend and object context.
func NewObjectError(op, backend, object string, err error) *Error {
	return &Error{
		Op:      op,
		Backend: backend,
		Object:  object,
		Err:     err,
	}
}

// Sentinel errors for common transfer operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("replica: object not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("replica: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("replica: invalid input")

	// ErrInvalidObjectName indicates that the object name is empty or unusable
	ErrInvalidObjectName = errors.New("replica: invalid object name")

	// ErrInvalidTarget indicates that a backend target definition is invalid
	ErrInvalidTarget = errors.New("replica: invalid target")

	// ErrObjectTooLarge indicates that the object exceeds the size limit
	ErrObjectTooLarge = errors.New("replica: object too large")

	// ErrThrottled indicates that the backend is rejecting requests due to rate
	ErrThrottled = errors.New("replica: throttled by backend")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("replica: operation timeout")

	// ErrConnection indicates a connection error
	ErrConnection = errors.New("replica: connection error")

	// ErrInvalidRange indicates that the requested byte range is invalid
	ErrInvalidRange = errors.New("replica: invalid range")

	// ErrQuorumNotMet indicates that too few backends committed the object
	ErrQuorumNotMet = errors.New("replica: quorum not met")

	// ErrAllBackendsFailed indicates that no backend could serve the request
	ErrAllBackendsFailed = errors.New("replica: all backends failed")
)

// BackendAttempt records one failed backend attempt during failover.
type BackendAttempt struct {
	// Backend is the target name that was tried
	Backend string

	// Err is the error the attempt failed with
	Err error
}

// AllFailedError reports that every configured backend failed to serve a
// request for an object. Attempts appear in the order they were tried.
type AllFailedError struct {
	// Op is the operation that failed (e.g., "download", "stat")
	Op string

	// Object is the object name the request was for
	Object string

	// Attempts holds each backend's failure in priority order
	Attempts []BackendAttempt
}

// Error implements the error interface.
func (e *AllFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("replica.%s object %s: all backends failed (%s)",
		e.Op, e.Object, strings.Join(parts, "; "))
}

// Unwrap exposes the attempt errors so errors.Is and errors.As can inspect
// individual backend failures.
func (e *AllFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Is reports a match against ErrAllBackendsFailed.
func (e *AllFailedError) Is(target error) bool {
	return target == ErrAllBackendsFailed
}

// IsObjectNotFound checks if an error indicates that an object was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput checks if an error indicates invalid input.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsQuorumNotMet checks if an error indicates a replication quorum failure.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsQuorumNotMet(err error) bool {
	return errors.Is(err, ErrQuorumNotMet)
}
