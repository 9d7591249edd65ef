package pkg

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateNewSessionID - generates a new unique session token.
func GenerateNewSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
