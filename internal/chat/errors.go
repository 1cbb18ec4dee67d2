package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when the query is missing or blank.
	ErrInvalidRequest = errors.New("chat: query is required")
	// ErrQueryFailed matches every *QueryError.
	ErrQueryFailed = errors.New("chat: query failed")
	// ErrDelegateUnavailable marks a delegate failure. It is logged and
	// never returned from Dispatch.
	ErrDelegateUnavailable = errors.New("chat: delegate unavailable")
)

// QueryError reports a store failure while answering an intent.
type QueryError struct {
	Intent Intent
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("chat: %s query failed: %v", e.Intent, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQueryFailed }

// Details is the underlying store message, suitable for diagnostics.
func (e *QueryError) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}
