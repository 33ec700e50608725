package models

import (
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DID is a decentralized identifier string such as did:key:z6Mk....
type DID string

func (d DID) String() string { return string(d) }

// KeyVersion is one entry in a DID's append-only key history.
// Versions start at 1 and increase by one per rotation.
type KeyVersion struct {
	Version   int
	PublicKey ed25519.PublicKey
	CreatedAt time.Time
}

// MethodID returns the verification method id of version v for did.
func MethodID(did DID, version int) string {
	return fmt.Sprintf("%s#key-%d", did, version)
}

// ParseMethodID splits "did#key-N" into the DID and N. A bare DID yields version 0.
func ParseMethodID(method string) (DID, int, error) {
	did, fragment, found := strings.Cut(method, "#")
	if did == "" {
		return "", 0, fmt.Errorf("verification method %q has no DID", method)
	}
	if !found {
		return DID(did), 0, nil
	}
	n, ok := strings.CutPrefix(fragment, "key-")
	if !ok {
		return "", 0, fmt.Errorf("verification method fragment %q is not key-N", fragment)
	}
	version, err := strconv.Atoi(n)
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("verification method version %q is invalid", n)
	}
	return DID(did), version, nil
}

// Record is the registry entry for a DID.
type Record struct {
	DID           DID
	ControllerDID DID
	Keys          []KeyVersion
	CreatedAt     time.Time
}

// Current returns the newest key version.
func (r Record) Current() KeyVersion {
	if len(r.Keys) == 0 {
		return KeyVersion{}
	}
	return r.Keys[len(r.Keys)-1]
}

// PublicKey returns the newest public key.
func (r Record) PublicKey() ed25519.PublicKey {
	return r.Current().PublicKey
}

// Key returns the key with the given version.
func (r Record) Key(version int) (KeyVersion, bool) {
	if version < 1 || version > len(r.Keys) {
		return KeyVersion{}, false
	}
	return r.Keys[version-1], true
}

// HasKey reports whether pub already appears in the history.
func (r Record) HasKey(pub ed25519.PublicKey) bool {
	for _, k := range r.Keys {
		if k.PublicKey.Equal(pub) {
			return true
		}
	}
	return false
}

// Attributes are the display attributes of a subject.
type Attributes struct {
	Name           string
	Email          string
	Department     string
	EnrollmentDate string
}

// Subject binds a DID to an external card and display attributes.
// Issuer identities have no card.
type Subject struct {
	DID        DID
	CardUID    CardUID
	CardStatus CardStatus
	Attributes Attributes
	CreatedAt  time.Time
}

// HasCard reports whether the subject is bound to a card.
func (s Subject) HasCard() bool {
	return s.CardUID != ""
}
