package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies job failures. The kind plus message are the only
// failure details surfaced to callers; raw tool output stays in the logs.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAcquireFailed ErrorKind = "acquire_failed"
	KindComposeFailed ErrorKind = "compose_failed"
	KindEncodeFailed  ErrorKind = "encode_failed"
	KindStorage       ErrorKind = "storage"
	KindTimeout       ErrorKind = "timeout"
	KindRejected      ErrorKind = "rejected"
	KindExpired       ErrorKind = "expired"
	KindCancelled     ErrorKind = "cancelled"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed. Errors that
// did not originate from this package report an empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError converts err into a *Error, assigning fallback as the kind when
// err carries none.
func AsError(err error, fallback ErrorKind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: fallback, Message: err.Error()}
}
