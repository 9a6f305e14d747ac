package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindInsufficientInventory Kind = "insufficient_inventory"
	KindConflict              Kind = "conflict"
	KindSignatureMismatch     Kind = "signature_mismatch"
	KindPersistenceFailure    Kind = "persistence_failure"
	KindInternal              Kind = "internal"
)

// Sentinels for errors.Is checks; an *Error matches the sentinel of its Kind.
var (
	ErrInvalidInput          = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInsufficientInventory = &Error{Kind: KindInsufficientInventory, Message: "not enough tickets available"}
	ErrConflict              = &Error{Kind: KindConflict, Message: "conflict"}
	ErrDuplicateSignature    = &Error{Kind: KindConflict, Message: "payment signature already recorded"}
	ErrSignatureMismatch     = &Error{Kind: KindSignatureMismatch, Message: "payment signature verification failed"}
	ErrPersistenceFailure    = &Error{Kind: KindPersistenceFailure, Message: "failed to persist changes"}
)

// Error is a classified failure. Message is safe to return to clients; Err
// carries the underlying cause for logs only.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	// ErrDuplicateSignature narrows KindConflict by message.
	if t == ErrDuplicateSignature {
		return e.Message == t.Message
	}
	return true
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func Persistence(message string, err error) *Error {
	return Wrap(KindPersistenceFailure, message, err)
}

func StatusFor(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindInsufficientInventory, KindSignatureMismatch:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Resolve returns the HTTP status and public message for err. Unclassified
// errors collapse to a generic 500.
func Resolve(err error) (int, string) {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := StatusFor(appErr.Kind)
		if status == http.StatusInternalServerError && appErr.Kind != KindPersistenceFailure {
			return status, "internal server error"
		}
		return status, appErr.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
