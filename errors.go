package botzie

import (
	"errors"
	"fmt"
)

// ErrRegistryClosed is returned when a session is created after shutdown began.
var ErrRegistryClosed = errors.New("session registry is closed")

// ValidationError rejects a start command before any state changes.
type ValidationError struct {
	Field  string // offending field; "body" for malformed payloads
	Reason string // human-readable explanation returned to callers
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateSessionError rejects a start command that reuses a live session id.
type DuplicateSessionError struct {
	SessionID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("session %q already exists", e.SessionID)
}

// UnknownSessionError names a session id the registry does not hold. Teardown
// treats it as success; it is only surfaced by lookups.
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

// UpstreamUnavailableError reports a failed notification to the simulation
// engine. The control boundary logs it and never fails the caller for it.
type UpstreamUnavailableError struct {
	Action string
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("notify engine %s: %v", e.Action, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsDuplicateSession reports whether err carries a *DuplicateSessionError.
func IsDuplicateSession(err error) bool {
	var target *DuplicateSessionError
	return errors.As(err, &target)
}
