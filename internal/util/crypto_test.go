package util

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionToken(t *testing.T) {
	token, err := NewSessionToken()
	require.NoError(t, err)

	// 32 bytes of entropy, URL-safe, no padding
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
	assert.NotContains(t, token, "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
}

func TestNewSessionToken_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := NewSessionToken()
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestNewInviteCode_Format(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewInviteCode()
		require.NoError(t, err)
		assert.Len(t, code, 12)

		for _, ch := range code {
			assert.Contains(t, inviteCodeChars, string(ch),
				"code should only contain unambiguous characters")
		}

		// Characters confusable with each other must never appear
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
		assert.NotContains(t, code, "L")
	}
}

func TestHashSecret(t *testing.T) {
	hash := HashSecret("AB23CD45EF67")

	assert.Len(t, hash, 64) // sha256 hex
	assert.Equal(t, hash, HashSecret("AB23CD45EF67"), "digest must be deterministic")
	assert.NotEqual(t, hash, HashSecret("AB23CD45EF68"))
	assert.Equal(t, strings.ToLower(hash), hash)
}

func TestContentDigest(t *testing.T) {
	digest := ContentDigest("Roof replacement", "Scope of work...")

	assert.Len(t, digest, 64)
	assert.Equal(t, digest, ContentDigest("Roof replacement", "Scope of work..."))

	// Any edit to title or body must change the digest
	assert.NotEqual(t, digest, ContentDigest("Roof replacement", "Scope of work... amended"))
	assert.NotEqual(t, digest, ContentDigest("Roof repair", "Scope of work..."))

	// Title/body boundary must matter
	assert.NotEqual(t, ContentDigest("ab", "c"), ContentDigest("a", "bc"))
}

func TestNewPublicHandle(t *testing.T) {
	handle, err := NewPublicHandle()
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	other, err := NewPublicHandle()
	require.NoError(t, err)
	assert.NotEqual(t, handle, other)
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "AB23-****", MaskCode("AB23CD45EF67"))
	assert.Equal(t, "****", MaskCode("AB2"))
}
