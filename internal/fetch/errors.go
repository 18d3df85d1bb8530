package fetch

import (
	"errors"
	"fmt"
)

// Kind categorizes a fetch failure.
type Kind string

const (
	// KindValidation: the request is structurally invalid.
	KindValidation Kind = "ValidationError"

	// KindStoreAccess: the underlying resource call failed (I/O fault,
	// constraint violation, closed store).
	KindStoreAccess Kind = "StoreAccessError"
)

// Error is a data-level fetch failure: a kind plus a human-readable message,
// optionally wrapping the cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, &Error{Kind: KindValidation})
// matches any validation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// NewValidationError creates a KindValidation error.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewStoreAccessError creates a KindStoreAccess error wrapping err.
func NewStoreAccessError(message string, err error) *Error {
	return &Error{Kind: KindStoreAccess, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsStoreAccess reports whether err is a store access error.
func IsStoreAccess(err error) bool {
	return KindOf(err) == KindStoreAccess
}

// AsError returns err as an *Error. Errors without a kind become store
// access errors, since they came from the resource.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return NewStoreAccessError("store call failed", err)
}
