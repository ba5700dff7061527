package cryptox

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken()
	require.NoError(t, err)
	require.Len(t, token, SecureTokenSize*2, "hex doubles the byte length")

	raw, err := hex.DecodeString(token)
	require.NoError(t, err)
	require.Len(t, raw, SecureTokenSize)
}

func TestGenerateSecureToken_Unique(t *testing.T) {
	const count = 100
	seen := make(map[string]struct{}, count)

	for range count {
		token, err := GenerateSecureToken()
		require.NoError(t, err)
		require.NotContains(t, seen, token, "duplicate token generated")
		seen[token] = struct{}{}
	}
}

func TestFingerprintToken(t *testing.T) {
	fp1a := FingerprintToken("test-token-1")
	fp1b := FingerprintToken("test-token-1")
	fp2 := FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}
