// Package apperr defines sentinel errors shared across the journal layers.
package apperr

import "errors"

var (
	// ErrNotFound indicates the requested item exists in neither the index
	// nor the sidecar store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyCaptured indicates a live photo already exists for the day
	// and retake was not allowed. Callers present this as a friendly
	// message, not a crash.
	ErrAlreadyCaptured = errors.New("already captured")

	// ErrNoImage indicates no image file exists for the requested date.
	ErrNoImage = errors.New("no image for date")

	// ErrInvalidEntry indicates an entry was rejected before any I/O.
	ErrInvalidEntry = errors.New("invalid entry")
)
