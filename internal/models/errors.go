package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced user or dialog does not exist, or
// a dialog does not belong to the claimed owner.
var ErrNotFound = errors.New("not found")

// ErrStoreUnavailable signals a connectivity failure to the persistent store.
var ErrStoreUnavailable = errors.New("store unavailable")

// ValidationError reports malformed input: negative token counts, an
// unsupported chat-mode name and the like. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// BackendError wraps any failure coming from the generative backend into one
// uniform kind carrying the original diagnostic.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
