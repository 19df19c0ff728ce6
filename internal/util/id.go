package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random id without dashes, safe in URLs and Redis keys.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
