package vectordb

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing document.
var ErrNotFound = errors.New("document not found")

// ErrDuplicateContent marks a content-level dedup hit. It is reported as a
// skip, never surfaced as a failure.
var ErrDuplicateContent = errors.New("duplicate content")

// ValidationError reports rejected input (empty text, zero chunks).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// DimensionMismatchError reports a chunk/embedding count mismatch or a vector
// width that does not match the index column. Always fatal for the document.
type DimensionMismatchError struct {
	Got  int
	Want int
	Kind string // "count" or "width"
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch (%s): got %d, want %d", e.Kind, e.Got, e.Want)
}

// StorageError wraps connectivity or index failures; surfaced to callers as
// fatal.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
