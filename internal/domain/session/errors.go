package session

import "errors"

// ErrInsufficientContext indicates recommendation synthesis was requested
// before the session gathered enough information. Caller-state bug; not
// retried.
var ErrInsufficientContext = errors.New("insufficient context for recommendation")

// ErrNotFound indicates no session exists for the user.
var ErrNotFound = errors.New("session not found")
