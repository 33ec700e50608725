package testutil

import (
	"bytes"
	"crypto/ed25519"
	"sync"
	"time"

	"presence/internal/keys"
)

// BaseTime is the fixed instant test ledgers start from.
var BaseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Day returns BaseTime shifted by n days, so Day(i) and Day(j) fall in
// different day buckets whenever i != j.
func Day(n int) time.Time {
	return BaseTime.AddDate(0, 0, n)
}

// KeyPair derives a deterministic Ed25519 keypair from a one-byte seed.
func KeyPair(seed byte) (ed25519.PublicKey, ed25519.PrivateKey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return priv.Public().(ed25519.PublicKey), priv
}

// SequentialKeys returns a generator handing out KeyPair(start), KeyPair(start+1), ...
// It is safe for concurrent use.
func SequentialKeys(start byte) keys.Generator {
	var mu sync.Mutex
	next := start
	return func() (ed25519.PublicKey, ed25519.PrivateKey, error) {
		mu.Lock()
		seed := next
		next++
		mu.Unlock()
		pub, priv := KeyPair(seed)
		return pub, priv, nil
	}
}

// Signer returns an Ed25519 signer for KeyPair(seed) with the given key id.
func Signer(seed byte, keyID string) *keys.Ed25519Signer {
	_, priv := KeyPair(seed)
	signer, err := keys.NewEd25519Signer(priv, keyID)
	if err != nil {
		panic(err)
	}
	return signer
}
