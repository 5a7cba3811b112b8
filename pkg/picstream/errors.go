package picstream

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotFound indicates a record was not found
	ErrNotFound = errors.New("record not found")

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyExists indicates a create-only write hit an existing key
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidInput indicates a required field was absent or malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCursor indicates a pagination token could not be decoded
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrLimitExceeded indicates a page size above the maximum was requested
	ErrLimitExceeded = errors.New("page limit exceeds maximum")

	// ErrUnsupportedContentType indicates a non-image upload content type
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrConflict indicates a conditional status write lost a race. It is a
	// benign outcome of redelivered notifications, not a failure.
	ErrConflict = errors.New("status precondition failed")

	// ErrUnauthorized indicates an identity mismatch on an owner-scoped
	// operation, detected before any store access
	ErrUnauthorized = errors.New("identity not authorized for operation")

	// ErrStoreUnavailable indicates the record store could not be reached
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrAnalysisUnavailable indicates the analysis service could not be reached
	ErrAnalysisUnavailable = errors.New("analysis service unavailable")

	// ErrGrantFailed indicates the upload broker rejected the grant constraints
	ErrGrantFailed = errors.New("upload grant could not be issued")
)

// IsClientError reports whether err is caused by bad caller input and must
// not be retried.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidCursor) ||
		errors.Is(err, ErrLimitExceeded) ||
		errors.Is(err, ErrUnsupportedContentType) ||
		errors.Is(err, ErrGrantFailed)
}

// IsTransient reports whether err is safe to retry with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrAnalysisUnavailable)
}

// IsConflict reports whether err is a lost conditional write. Callers treat
// it as a no-op.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// RecordError wraps a failure of an operation against a specific record.
type RecordError struct {
	RecordID string
	Op       string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for record %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// TransitionError wraps a failure while moving a record through the image
// lifecycle.
type TransitionError struct {
	RecordID string
	From     ImageStatus
	To       ImageStatus
	Err      error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s failed for record %s: %v", e.From, e.To, e.RecordID, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// GrantError wraps a failure while issuing an upload grant for a key.
type GrantError struct {
	Key string
	Err error
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("upload grant failed for key %s: %v", e.Key, e.Err)
}

func (e *GrantError) Unwrap() error {
	return e.Err
}
