package session

import (
	"errors"
	"fmt"
)

// Kind categorizes session failures. All of them are recoverable by retrying
// or reconnecting.
type Kind string

const (
	// PersistFailure: the store rejected a message write.
	PersistFailure Kind = "PERSIST_FAILURE"
	// ClearFailure: the store failed to delete all messages.
	ClearFailure Kind = "CLEAR_FAILURE"
	// SyncFailure: the snapshot subscription failed.
	SyncFailure Kind = "SYNC_FAILURE"
)

// Error is a categorized session failure wrapping its cause.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func isKind(err error, kind Kind) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind == kind
	}
	return false
}

// IsPersistFailure reports whether err is a PersistFailure.
func IsPersistFailure(err error) bool { return isKind(err, PersistFailure) }

// IsClearFailure reports whether err is a ClearFailure.
func IsClearFailure(err error) bool { return isKind(err, ClearFailure) }

// IsSyncFailure reports whether err is a SyncFailure.
func IsSyncFailure(err error) bool { return isKind(err, SyncFailure) }
