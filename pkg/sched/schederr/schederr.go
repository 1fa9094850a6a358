// Package schederr defines the error kinds propagated by the scheduling and
// memory-admission engine.
package schederr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of propagation policy: only
// ConfigError and FatalInternal are meant to surface to a caller outside the
// engine; the rest are handled at the component that detects them.
type Kind int

const (
	// ConfigError indicates missing or invalid configuration. Fatal at
	// initialize time; no components are started.
	ConfigError Kind = iota
	// AdmissionRejected indicates memory could not be allocated and no Idle
	// resident was available to evict. Recovered locally by the Dispatcher.
	AdmissionRejected
	// DuplicateScreen indicates a process name already in use for a
	// non-finished job.
	DuplicateScreen
	// NotInitialized indicates a command was used before the engine started.
	NotInitialized
	// FatalInternal indicates an invariant violation. Logged and terminal.
	FatalInternal
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case AdmissionRejected:
		return "AdmissionRejected"
	case DuplicateScreen:
		return "DuplicateScreen"
	case NotInitialized:
		return "NotInitialized"
	case FatalInternal:
		return "FatalInternal"
	default:
		return "UnknownError"
	}
}

// Error is a typed error carrying a Kind so callers can branch on
// errors.As without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a schederr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// AlreadyFinished indicates execute_one was called on a process that has
// already reached the Finished state. It is always of Kind FatalInternal.
var AlreadyFinished = New(FatalInternal, "execute_one called on a finished process")
