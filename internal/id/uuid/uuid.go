// Package uuid issues time-ordered report IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 strings, so report IDs sort by creation time.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Validate reports whether raw is a canonical UUID string.
func Validate(raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse id %q: %w", raw, err)
	}
	if id.String() != raw {
		return fmt.Errorf("id %q is not in canonical form", raw)
	}
	return nil
}
