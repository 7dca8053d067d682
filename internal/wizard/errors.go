package wizard

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorBusy              ErrorCode = "BUSY"
	ErrorNotFound          ErrorCode = "NOT_FOUND"
	ErrorRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
)

// Error is returned by every rejected transition. A rejected transition
// leaves the dialog exactly as it was, apart from clearing the loading flag
// after a failed backend round.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("wizard: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("wizard: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf reports the ErrorCode carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var wErr *Error
	if !errors.As(err, &wErr) {
		return "", false
	}
	return wErr.Code, true
}
