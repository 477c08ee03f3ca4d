// Package apperr defines the typed error kinds used across the core engine.
//
// Control flow uses ordinary Go error values, never panics: a blocked contact
// request or a reservation conflict is exactly as "successful" a function
// return as a granted lease, just with a different Kind attached.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a core error, independent of its message.
// The JSON-RPC transport maps each Kind to a stable numeric code.
type Kind string

const (
	Validation        Kind = "VALIDATION_ERROR"
	NotFound          Kind = "NOT_FOUND"
	NameExhaustion    Kind = "NAME_EXHAUSTION"
	ContactBlocked    Kind = "CONTACT_BLOCKED"
	ContactConsent    Kind = "CONTACT_CONSENT_REQUIRED"
	ReservationConflict Kind = "FILE_RESERVATION_CONFLICT"
	ArchiveCommitFailed Kind = "ARCHIVE_COMMIT_FAILED"
	Internal          Kind = "INTERNAL"
)

// Error is the typed error value returned by core operations.
type Error struct {
	Kind          Kind
	Message       string
	CorrelationID string
	cause         error
}

func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s: %s (correlation_id=%s)", e.Kind, e.Message, e.CorrelationID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause, preserving it for
// errors.Is/errors.As unwrapping.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithCorrelation returns a copy of e with a correlation id attached, used for
// INTERNAL errors so operators can find the matching log line.
func (e *Error) WithCorrelation(id string) *Error {
	cp := *e
	cp.CorrelationID = id
	return &cp
}

// KindOf extracts the Kind from err, defaulting to Internal for plain errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}
