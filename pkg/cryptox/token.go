package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SecureTokenSize is the number of random bytes behind email verification and
// password reset tokens (256 bits).
const SecureTokenSize = 32

// GenerateSecureToken returns SecureTokenSize random bytes, hex encoded. These
// are the one-shot tokens mailed to users, so they have to survive being
// pasted into a URL without escaping.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, SecureTokenSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token.
// Stores keep the fingerprint so a leaked table can't be replayed, and lookup
// by token value becomes lookup by fingerprint.
//
// The fingerprint is returned as a base64url-encoded string (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
