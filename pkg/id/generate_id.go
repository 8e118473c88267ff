package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 hex characters (no separators/prefixes),
// the random v4 UUID bytes in lowercase hex.
func NewID32() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
