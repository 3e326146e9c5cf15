package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindProvider      Kind = "provider"
	KindParse         Kind = "parse"
	KindNotFound      Kind = "not_found"
	KindInvalid       Kind = "invalid"
	KindConflict      Kind = "conflict"
)

// ErrNotFound is matched by every NotFound error via errors.Is.
var ErrNotFound = errors.New("not found")

// Error is the structured error returned across package boundaries.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) succeed for NotFound errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindProvider:
		return http.StatusBadGateway
	case KindParse:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Configuration reports a missing credential or setting.
func Configuration(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// Provider wraps a network or upstream failure.
func Provider(op string, err error) *Error {
	return &Error{Kind: KindProvider, Op: op, Message: "upstream request failed", Err: err}
}

// ProviderStatus records a non-success status from an upstream service.
func ProviderStatus(op string, status int, body string) *Error {
	return &Error{
		Kind:       KindProvider,
		Op:         op,
		Message:    fmt.Sprintf("unexpected status %d: %s", status, body),
		StatusCode: status,
	}
}

// Parse wraps an unreadable upstream response.
func Parse(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Message: "malformed response", Err: err}
}

// NotFound reports a missing record.
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Invalid reports bad caller input.
func Invalid(op, message string) *Error {
	return &Error{Kind: KindInvalid, Op: op, Message: message}
}

// Conflict reports an operation not allowed in the record's current state.
func Conflict(op, message string) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }
func IsProvider(err error) bool      { return KindOf(err) == KindProvider }
func IsParse(err error) bool         { return KindOf(err) == KindParse }
func IsNotFound(err error) bool      { return KindOf(err) == KindNotFound }
func IsInvalid(err error) bool       { return KindOf(err) == KindInvalid }
func IsConflict(err error) bool      { return KindOf(err) == KindConflict }
