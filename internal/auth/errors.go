package auth

import "errors"

var (
	// ErrInvalidInput rejects malformed input before any network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotAuthenticated gates operations that need a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOperationInFlight suppresses a duplicate of an operation that is
	// still running; the caller should simply wait for the first one.
	ErrOperationInFlight = errors.New("operation already in flight")
	// ErrBadGrant indicates the backend answered a session-establishing
	// call without the complete {access, refresh, user} triple.
	ErrBadGrant = errors.New("incomplete session grant")
)
