package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deterministicGenerator(b byte) Generator {
	return NewGenerator(bytes.NewReader(bytes.Repeat([]byte{b}, ed25519.SeedSize)))
}

func TestEd25519Signer(t *testing.T) {
	pub, priv, err := deterministicGenerator(7)()
	require.NoError(t, err)

	signer, err := NewEd25519Signer(priv, "did:key:z6Mk#key-1")
	require.NoError(t, err)
	assert.True(t, pub.Equal(signer.Public()))
	assert.Equal(t, "did:key:z6Mk#key-1", signer.KeyID())

	msg := []byte("canonical payload")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)
	assert.True(t, Verify(pub, msg, sig))
	assert.False(t, Verify(pub, []byte("tampered"), sig))
	assert.False(t, Verify(pub[:10], msg, sig), "short keys never verify")
	assert.False(t, Verify(pub, msg, sig[:10]), "short signatures never verify")

	_, err = NewEd25519Signer(priv[:5], "")
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestSealOpen(t *testing.T) {
	_, priv, err := deterministicGenerator(1)()
	require.NoError(t, err)

	sealed, err := Seal(priv, []byte("correct horse"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(priv.Seed()))

	opened, err := Open(sealed, []byte("correct horse"))
	require.NoError(t, err)
	assert.True(t, priv.Equal(opened))

	_, err = Open(sealed, []byte("wrong"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = Seal(priv, nil)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = Open([]byte(`{"version":9,"kdf":"argon2id"}`), []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedStore)
}

func TestOpenRejectsKDFParamsOutOfRange(t *testing.T) {
	_, priv, err := deterministicGenerator(1)()
	require.NoError(t, err)
	sealed, err := Seal(priv, []byte("correct horse"))
	require.NoError(t, err)

	cases := []struct {
		name  string
		field string
		value any
	}{
		{name: "zero threads", field: "threads", value: 0},
		{name: "zero time", field: "time", value: 0},
		{name: "time too high", field: "time", value: maxArgonTime + 1},
		{name: "memory below threads", field: "memory", value: 8},
		{name: "memory too high", field: "memory", value: maxArgonMemory + 1},
		{name: "short salt", field: "salt", value: []byte("salt")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal(sealed, &doc))
			doc[tc.field] = tc.value
			tampered, err := json.Marshal(doc)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "issuer.key")
			require.NoError(t, os.WriteFile(path, tampered, 0o600))
			assert.NotPanics(t, func() {
				_, _, err = LoadOrCreate(path, []byte("correct horse"), nil)
			})
			assert.ErrorIs(t, err, ErrUnsupportedStore)
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets", "issuer.key")
	pass := []byte("passphrase")

	first, created, err := LoadOrCreate(path, pass, deterministicGenerator(3))
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, created, err := LoadOrCreate(path, pass, deterministicGenerator(4))
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, first.Equal(second), "existing keystore is reused")

	_, _, err = LoadOrCreate(path, []byte("other"), nil)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}
