package util

import "github.com/google/uuid"

// NewID returns a fresh opaque identifier for sessions and outbound requests.
// This lives in internal to avoid committing to public API stability prematurely.
func NewID() string {
	return uuid.NewString()
}
