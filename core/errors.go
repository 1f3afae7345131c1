// Package core implements the request/donation lifecycle: the transition
// engine, the visibility filter, and the linkage between claimed requests
// and the donations they spawn. It is transport-agnostic; controllers map
// these errors to HTTP responses.
package core

import "errors"

// Every error the engine returns wraps exactly one of these sentinels, so
// callers can branch with errors.Is. All five lifecycle kinds are
// recoverable: the caller re-fetches the record and presents its current
// state instead of assuming its transition went through.
var (
	// ErrUnauthenticated means no valid actor identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the actor is authenticated but has the wrong role,
	// the wrong location, or is not the record's assigned volunteer/owner.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition means the requested action is not legal from the
	// record's current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict means a concurrent transition changed the record between
	// read and write; the caller lost the race and should refresh.
	ErrConflict = errors.New("conflict")

	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means no record exists with the given id.
	ErrNotFound = errors.New("not found")
)
