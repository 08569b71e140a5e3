// Package apperr implements the error taxonomy of the print broker: every
// fallible operation in the core pipeline returns (or wraps) an *Error
// carrying one of a small set of Kinds, so the request handler can map a
// failure straight to a wire error code in one place instead of string-
// matching error messages scattered across call sites.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the six error categories from the error handling design.
type Kind string

const (
	Auth     Kind = "AUTH"
	Quota    Kind = "QUOTA"
	Input    Kind = "INPUT"
	Resource Kind = "RESOURCE"
	Backend  Kind = "BACKEND"
	Internal Kind = "INTERNAL"
)

// Error is a kinded, wrapped application error. Code is a wire-level error
// code from spec §6 (e.g. "VALIDATION_ERROR"); Field is set for validation
// failures and names the offending field, never the offending value.
type Error struct {
	Kind    Kind
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind and wire code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap constructs an *Error of the given kind and wire code, wrapping an
// underlying cause for logging while keeping the client-visible message
// generic.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// WithField attaches the offending field name (validation errors only) and
// returns the same *Error for chaining.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// As reports whether err (or one it wraps) is an *Error, and if so returns
// it.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, or Internal
// otherwise — an unkinded error is always treated as internal.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}
