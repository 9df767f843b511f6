package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateClientID returns a process-unique id for a relay session.
func GenerateClientID() string {
	return GenerateID("client")
}

// GenerateID generates a random ID with prefix.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
