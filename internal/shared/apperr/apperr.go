// Package apperr defines the error kinds surfaced to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so callers can render a specific message.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindAuthorization     Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindExtraction        Kind = "extraction_failed"
	KindStorageIO         Kind = "storage_io"
	KindDuplicate         Kind = "duplicate"
	KindInternal          Kind = "internal_error"
)

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind when the target carries no message,
// so errors.Is(err, apperr.ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrStorageIO         = &Error{Kind: KindStorageIO}
	ErrDuplicate         = &Error{Kind: KindDuplicate}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: err}
}

func Validation(msg string) *Error           { return New(KindValidation, msg) }
func NotFound(msg string) *Error             { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error            { return New(KindAuthorization, msg) }
func Duplicate(msg string) *Error            { return New(KindDuplicate, msg) }
func Transition(msg string) *Error           { return New(KindInvalidTransition, msg) }
func StorageIO(err error, msg string) *Error { return Wrap(err, KindStorageIO, msg) }

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns a caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Unexpected server error"
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindInvalidTransition, KindDuplicate:
		return http.StatusConflict
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindStorageIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
