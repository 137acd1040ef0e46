package core

import (
	"errors"
	"fmt"
)

// Domain error codes carried by Error and mapped onto HTTP statuses by
// StatusForCode.
const (
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAccessDenied        = "ACCESS_DENIED"
	ErrCodeTransitionDenied    = "TRANSITION_DENIED"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeInternal            = "INTERNAL"
	ErrCodeAlreadyBootstrapped = "ALREADY_BOOTSTRAPPED"
)

// Error attaches a stable machine-readable code and optional extras to an
// underlying error. It unwraps to the wrapped error.
type Error struct {
	Err    error
	Code   string
	Extras map[string]any
}

// NewError wraps err with a code and extras.
func NewError(err error, code string, extras map[string]any) *Error {
	return &Error{Err: err, Code: code, Extras: extras}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the domain code from anywhere in the error chain, falling
// back to the internal code for plain errors.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrCodeInternal
}

// ExtrasOf extracts the extras map from anywhere in the error chain. Returns
// nil for plain errors.
func ExtrasOf(err error) map[string]any {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Extras
	}
	return nil
}
