package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing document, line or master-data row.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or insufficient input.
	ErrValidation = errors.New("validation failed")
	// ErrDocumentFinalized indicates an attempted edit of an immutable document.
	ErrDocumentFinalized = errors.New("document is finalized")
	// ErrAllocationExhausted indicates the sequence allocator exceeded its retry bound.
	ErrAllocationExhausted = errors.New("sequence allocation attempts exhausted")
)

// Invalid wraps a message in ErrValidation.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UserSafeMessage returns a message suitable for end users. Messages from
// classified errors pass through; anything else is replaced with a generic
// message so store internals do not leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrDocumentFinalized),
		errors.Is(err, ErrAllocationExhausted):
		return err.Error()
	default:
		return "operation failed, please try again"
	}
}
