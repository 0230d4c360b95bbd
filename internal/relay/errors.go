package relay

import (
	"fmt"
	"strings"
)

// Error is a failure that already knows the HTTP status the caller-facing
// response should carry. Handlers unwrap it with errors.As; anything that is
// not a *Error surfaces as a plain 500.
type Error struct {
	Status  int
	Message string
	Err     error
}

// NewError builds a terminal error with the given response status.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// WrapError builds a terminal error that preserves the underlying cause.
func WrapError(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
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

// IsAuthFailure reports whether an error's text looks like an upstream
// credential rejection. The upstream reports auth problems in free-form
// message text, so this matches on "403"/"401" substrings. Brittle on
// purpose: swap in structured status inspection here once the provider
// exposes one, without touching callers.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "401")
}
