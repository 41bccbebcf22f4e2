// Package apperr defines the error taxonomy shared by the client core.
//
// Every user-facing failure is one of three kinds: a ValidationError raised
// before any network call, a FetchError from a cache read, or a
// MutationError from a write. Realtime events that reference entities the
// client is not tracking are never surfaced; ErrStaleEvent exists only so
// they can be logged consistently.
package apperr

import (
	"errors"
	"fmt"
)

// ErrStaleEvent marks a realtime event for an entity that is not tracked
// locally. It is logged at debug level and never returned to callers.
var ErrStaleEvent = errors.New("event references untracked entity")

// ValidationError reports client-side input rejected before any request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FetchError wraps a failed read of a cache key. The cache keeps the last
// known data for the key when this is returned.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError wraps a failed write issued by the mutation dispatcher.
type MutationError struct {
	Op  string
	Key string
	Err error
}

func (e *MutationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Key, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Message renders err for a transient notification. Wrapped context is
// trimmed to the innermost typed error when one is present.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	var m *MutationError
	if errors.As(err, &m) {
		return fmt.Sprintf("%s failed: %v", m.Op, m.Err)
	}
	var f *FetchError
	if errors.As(err, &f) {
		return fmt.Sprintf("could not load %s: %v", f.Key, f.Err)
	}
	return err.Error()
}
