package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is the canonical identifier type used across all entities.
type ID string

// NewID generates a new KSUID-backed identifier.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID and panics on failure. Intended for tests and
// process-startup code paths.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID validates a raw string as a KSUID and returns it as an ID.
func ParseID(raw string) (ID, error) {
	if raw == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}
	if _, err := ksuid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid ID %q: %w", raw, err)
	}
	return ID(raw), nil
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the ID is the empty value.
func (id ID) IsZero() bool {
	return id == ""
}
