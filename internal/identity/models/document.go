package models

import (
	"crypto/ed25519"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const VerificationKeyType = "Ed25519VerificationKey2018"

// Document is the W3C DID document rendered for a record.
type Document struct {
	Context            []string             `json:"@context"`
	ID                 DID                  `json:"id"`
	Controller         DID                  `json:"controller"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication"`
	AssertionMethod    []string             `json:"assertionMethod"`
	Created            time.Time            `json:"created"`
}

type VerificationMethod struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Controller      DID     `json:"controller"`
	PublicKeyBase58 string  `json:"publicKeyBase58"`
	PublicKeyJwk    jwk.Key `json:"publicKeyJwk"`
}

// CreatedIdentity is returned once by CreateIdentity. PrivateKey is not
// retained by the registry.
type CreatedIdentity struct {
	Record     Record
	Subject    Subject
	PrivateKey ed25519.PrivateKey
}
