// Package apperr defines the error kinds surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindBadRequest   Kind = "BAD_REQUEST"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindInternal     Kind = "INTERNAL_SERVER_ERROR"
)

// Error carries a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Data is attached to the response body (e.g. the conflicting timer).
	Data map[string]interface{}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func BadRequest(msg string) *Error   { return newError(KindBadRequest, msg, nil) }
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return newError(KindForbidden, msg, nil) }
func NotFound(msg string) *Error     { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) *Error     { return newError(KindConflict, msg, nil) }

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	return newError(KindInternal, msg, cause)
}

// WithData returns e with a response payload field attached.
func (e *Error) WithData(key string, value interface{}) *Error {
	if e.Data == nil {
		e.Data = make(map[string]interface{})
	}
	e.Data[key] = value
	return e
}

// KindOf reports the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
