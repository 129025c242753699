package model

import (
	"time"

	"github.com/pkg/errors"
)

// ErrorKind is Arachne's semantic error taxonomy. Core operations never
// panic; every fallible path returns one of these, wrapped over its
// underlying cause.
type ErrorKind int

const (
	ErrRepoOpen ErrorKind = iota
	ErrWalk
	ErrParse
	ErrForgeAuth
	ErrForgeRate
	ErrForgeNetwork
	ErrWatcher
	ErrTerminal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrRepoOpen:
		return "repo-open"
	case ErrWalk:
		return "walk"
	case ErrParse:
		return "parse"
	case ErrForgeAuth:
		return "forge-auth"
	case ErrForgeRate:
		return "forge-rate"
	case ErrForgeNetwork:
		return "forge-network"
	case ErrWatcher:
		return "watcher"
	case ErrTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Error is Arachne's core error type: a kind plus a wrapped cause.
//
// RetryAfter is set only for ErrForgeRate: the time at which the forge's
// own rate-limit window resets, so callers can delay the next poll tick
// instead of retrying immediately into the same limit.
type Error struct {
	Kind       ErrorKind
	cause      error
	message    string
	RetryAfter time.Time
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Kind.String() + ": " + e.message + ": " + e.cause.Error()
	}
	return e.Kind.String() + ": " + e.message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// NewError builds a core Error with no cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, message: message}
}

// WrapError builds a core Error wrapping cause, using pkg/errors so the
// wrapped chain keeps a stack trace at the original failure site.
func WrapError(kind ErrorKind, cause error, message string) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause), message: message}
}

// WrapErrorRetryAfter is WrapError plus a RetryAfter hint, for ErrForgeRate.
func WrapErrorRetryAfter(kind ErrorKind, cause error, message string, retryAfter time.Time) *Error {
	return &Error{Kind: kind, cause: errors.WithStack(cause), message: message, RetryAfter: retryAfter}
}

// KindOf extracts the ErrorKind from err if it (or something it wraps) is
// a *Error, reporting ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
