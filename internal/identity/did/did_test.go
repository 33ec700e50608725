package did

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/identity/models"
)

func TestFromPublicKey_RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	d, err := FromPublicKey(pub)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.String(), "did:key:z6Mk"), "ed25519 did:key identifiers start with z6Mk")

	again, err := FromPublicKey(pub)
	require.NoError(t, err)
	assert.Equal(t, d, again)

	decoded, err := PublicKey(d)
	require.NoError(t, err)
	assert.True(t, pub.Equal(decoded))
	assert.NoError(t, Validate(d))
}

func TestFromPublicKey_KnownVector(t *testing.T) {
	// all-zero key
	d, err := FromPublicKey(make([]byte, ed25519.PublicKeySize))
	require.NoError(t, err)
	assert.Equal(t, models.DID("did:key:z6MkeTG3bFFSLYVU7VqhgZxqr6YzpaGrQtFMh1uvqGy1vDnP"), d)
}

func TestFromPublicKey_RejectsShortKey(t *testing.T) {
	_, err := FromPublicKey([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPublicKey_Invalid(t *testing.T) {
	for _, bad := range []models.DID{
		"",
		"did:web:example.com",
		"did:key:",
		"did:key:m6Mk",
		"did:key:z0OIl",
		// x25519 multicodec
		"did:key:z6LSbgBAXJos6Tik6PNmXeWxKbDUr9Y7hcB9syigVTeXiNmm",
	} {
		_, err := PublicKey(bad)
		assert.ErrorIs(t, err, ErrInvalidDID, string(bad))
	}
}
