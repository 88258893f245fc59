package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a random identifier for runs and batches.
func GenerateID() string {
	return uuid.NewString()
}

// ValidID reports whether s is an identifier produced by GenerateID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
