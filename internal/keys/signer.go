// Package keys holds the signing primitive and the sealed issuer keystore.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidPrivateKey = errors.New("invalid ed25519 private key")

// Signer signs canonical payloads. KeyID is the verification method id
// (did#key-N) that verifiers resolve the public key from.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	Public() ed25519.PublicKey
	KeyID() string
}

// Ed25519Signer signs with an in-memory Ed25519 key.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	keyID string
}

func NewEd25519Signer(priv ed25519.PrivateKey, keyID string) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	return &Ed25519Signer{priv: priv, keyID: keyID}, nil
}

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func (s *Ed25519Signer) Public() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

func (s *Ed25519Signer) KeyID() string {
	return s.keyID
}

// Verify reports whether sig is a valid signature of msg by pub.
// Malformed keys verify as false instead of panicking.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Generator produces fresh keypairs. Tests swap in a deterministic reader.
type Generator func() (ed25519.PublicKey, ed25519.PrivateKey, error)

// NewGenerator returns a Generator reading entropy from r, or crypto/rand when r is nil.
func NewGenerator(r io.Reader) Generator {
	if r == nil {
		r = rand.Reader
	}
	return func() (ed25519.PublicKey, ed25519.PrivateKey, error) {
		pub, priv, err := ed25519.GenerateKey(r)
		if err != nil {
			return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return pub, priv, nil
	}
}
