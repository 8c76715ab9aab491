package utils

import "github.com/google/uuid"

// NewID returns a random identifier for requests and connections.
func NewID() string {
	return uuid.NewString()
}
