package uuid

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	googleuuid "github.com/google/uuid"
)

// codeBytes is the number of random bytes in a human code (8 hex characters).
const codeBytes = 4

// New generates a time-ordered UUIDv7 suitable for use as a primary key.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to a random v4 when the clock sequence cannot be read
		return googleuuid.New().String()
	}
	return id.String()
}

// NewCode returns a human-facing identifier such as "TRX-9F2A01BC".
func NewCode(prefix string) string {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		// Borrow entropy from a v4 UUID rather than fail record creation
		u := googleuuid.New()
		copy(b, u[:codeBytes])
	}
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(b))
}

// Parse validates and parses a UUID string
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
