package survey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per token: collision probability is
// negligible even under sustained batch issuance, and the encoded form stays
// short enough for an SMS link.
const tokenBytes = 32

// generateToken returns a cryptographically unguessable, URL-safe access
// token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
