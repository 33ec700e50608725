// Package did derives and parses did:key identifiers for Ed25519 keys.
//
// A did:key DID is the multibase (base58btc, prefix "z") encoding of the
// multicodec-prefixed public key: did:key:z<base58btc(0xed 0x01 || pub)>.
package did

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"presence/internal/identity/models"
)

const (
	Prefix = "did:key:"

	multibaseBase58BTC = 'z'
)

// ed25519-pub multicodec, varint encoded.
var ed25519Codec = []byte{0xed, 0x01}

var (
	ErrInvalidDID = errors.New("invalid did:key identifier")
	ErrInvalidKey = errors.New("invalid ed25519 public key")
)

// FromPublicKey derives the DID for pub. The result depends only on pub.
func FromPublicKey(pub ed25519.PublicKey) (models.DID, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidKey
	}
	buf := make([]byte, 0, len(ed25519Codec)+len(pub))
	buf = append(buf, ed25519Codec...)
	buf = append(buf, pub...)
	return models.DID(Prefix + string(multibaseBase58BTC) + base58.Encode(buf)), nil
}

// PublicKey decodes the Ed25519 key embedded in a did:key identifier.
func PublicKey(d models.DID) (ed25519.PublicKey, error) {
	rest, ok := strings.CutPrefix(string(d), Prefix)
	if !ok || len(rest) < 2 || rest[0] != multibaseBase58BTC {
		return nil, ErrInvalidDID
	}
	raw, err := base58.Decode(rest[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDID, err)
	}
	if !bytes.HasPrefix(raw, ed25519Codec) || len(raw) != len(ed25519Codec)+ed25519.PublicKeySize {
		return nil, ErrInvalidDID
	}
	return ed25519.PublicKey(raw[len(ed25519Codec):]), nil
}

// Validate reports whether d is a well formed Ed25519 did:key.
func Validate(d models.DID) error {
	_, err := PublicKey(d)
	return err
}
