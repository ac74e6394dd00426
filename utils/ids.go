package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewConnectionID returns the identifier handed to a freshly upgraded socket.
// It is unique per live transport session and never reused.
func NewConnectionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func NewExecutionID() string {
	return uuid.NewString()
}
