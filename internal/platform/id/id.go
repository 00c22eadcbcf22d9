package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

// NanoID produces 21-character URL-safe random ids.
type NanoID struct{}

func (NanoID) New() string {
	return gonanoid.Must()
}
