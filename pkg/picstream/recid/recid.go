// Package recid generates record identifiers.
//
// Identifiers are UUIDv7 strings: globally unique without coordination,
// fixed-length, URL-safe, and lexicographically ordered by creation time at
// millisecond resolution. Range queries use them as the creation-order sort
// key and tie-breaker.
package recid

import "github.com/google/uuid"

// New returns a fresh record identifier. It cannot fail: the only failure
// mode of the underlying generator is an unreadable entropy source, which is
// not a recoverable condition.
func New() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Valid reports whether s is a well-formed record identifier.
func Valid(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 7
}
