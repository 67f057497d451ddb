// Package apperror defines the error taxonomy shared by the repositories,
// services and HTTP handlers.
//
// Every failure that crosses a package boundary is an *Error carrying a Kind.
// Handlers map the Kind to a status code in one place; lower layers only
// decide which Kind applies.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the API layer.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindAlreadyExists       Kind = "already_exists"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindUpstream            Kind = "upstream_failure"
	KindStorage             Kind = "storage_failure"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation unchanged.
//
// Storage failures are transient by assumption (connection loss, aborted
// transaction); every other kind fails the same way on retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindStorage || e.Kind == KindUpstream
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, fmt.Sprintf(format, args...))
}

func AlreadyExists(format string, args ...any) *Error {
	return New(KindAlreadyExists, fmt.Sprintf(format, args...))
}

func InsufficientBalance(format string, args ...any) *Error {
	return New(KindInsufficientBalance, fmt.Sprintf(format, args...))
}

func Unauthorized(msg string) *Error {
	return New(KindUnauthorized, msg)
}

func Forbidden(msg string) *Error {
	return New(KindForbidden, msg)
}

func Upstream(msg string, err error) *Error {
	return Wrap(KindUpstream, msg, err)
}

// Storage wraps a backing-store failure. A nil err yields nil so call sites
// can wrap unconditionally.
func Storage(msg string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Wrap(KindStorage, msg, err)
}

// KindOf returns the Kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorage
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}
