// Package uuid provides UUID functionality for session identifiers.
// It wraps github.com/google/uuid and sets version 4 (random) as the default,
// since session ids carry no ordering and must not be guessable from time.
package uuid

import (
	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// New returns a new random UUIDv4. Panics if UUID generation fails.
func New() UUID {
	return uuid.New()
}

// NewRandom returns a new random UUIDv4 and any error encountered during generation.
func NewRandom() (UUID, error) {
	return uuid.NewRandom()
}

// NewString returns the string form of a new random UUIDv4.
func NewString() string {
	return uuid.NewString()
}

// Parse parses a UUID string into a UUID value. Returns an error if the string is not a valid UUID.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// MustParse parses a UUID string and panics if the string is not a valid UUID.
func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// IsValid reports whether s parses as a UUID in any of the accepted string forms.
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Nil is the zero UUID value.
var Nil = uuid.Nil
