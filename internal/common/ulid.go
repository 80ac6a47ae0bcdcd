package common

import "github.com/oklog/ulid/v2"

// NewULID returns a 26 char, time ordered identifier.
func NewULID() (string, error) {
	return ulid.Make().String(), nil
}
