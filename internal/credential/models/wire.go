package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mr-tron/base58"

	idmodels "presence/internal/identity/models"
)

// Document is the JSON presentation of a credential. Field names follow
// the W3C VC data model; the signature is multibase base58btc.
type Document struct {
	ID                string          `json:"id"`
	Issuer            string          `json:"issuer"`
	CredentialSubject SubjectDocument `json:"credentialSubject"`
	Proof             ProofDocument   `json:"proof"`
	Status            string          `json:"status,omitempty"`
	RevokedAt         *time.Time      `json:"revokedAt,omitempty"`
}

type SubjectDocument struct {
	ID               string    `json:"id"`
	AttendanceRatio  float64   `json:"attendanceRatio"`
	SessionsAttended int       `json:"sessionsAttended"`
	SessionsRequired int       `json:"sessionsRequired"`
	IssuedAt         time.Time `json:"issuedAt"`
}

type ProofDocument struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue"`
}

const multibaseBase58BTC = "z"

func ToDocument(c Credential) Document {
	return Document{
		ID:     c.ID.String(),
		Issuer: c.IssuerDID.String(),
		CredentialSubject: SubjectDocument{
			ID:               c.SubjectDID.String(),
			AttendanceRatio:  c.Claims.AttendanceRatio,
			SessionsAttended: c.Claims.SessionsAttended,
			SessionsRequired: c.Claims.SessionsRequired,
			IssuedAt:         c.Claims.IssuedAt.UTC(),
		},
		Proof: ProofDocument{
			Type:               c.Proof.Type,
			Created:            c.Proof.Created.UTC(),
			VerificationMethod: c.Proof.VerificationMethod,
			ProofPurpose:       c.Proof.ProofPurpose,
			ProofValue:         multibaseBase58BTC + base58.Encode(c.Proof.Signature),
		},
		Status:    string(c.Status),
		RevokedAt: c.RevokedAt,
	}
}

var ErrMalformed = errors.New("malformed credential")

// ParseDocument strictly decodes a presented credential. Unknown fields,
// trailing data and undecodable proof values are all malformed.
func ParseDocument(raw []byte) (Credential, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return Credential{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}
	return FromDocument(doc)
}

// FromDocument converts the presentation back to the model. Only the
// proof value encoding is checked here; Validate covers the rest.
func FromDocument(doc Document) (Credential, error) {
	var sig []byte
	if doc.Proof.ProofValue != "" {
		if len(doc.Proof.ProofValue) < 2 || doc.Proof.ProofValue[:1] != multibaseBase58BTC {
			return Credential{}, fmt.Errorf("%w: proofValue must be base58btc multibase", ErrMalformed)
		}
		decoded, err := base58.Decode(doc.Proof.ProofValue[1:])
		if err != nil {
			return Credential{}, fmt.Errorf("%w: proofValue: %v", ErrMalformed, err)
		}
		sig = decoded
	}
	return Credential{
		ID:         CredentialID(doc.ID),
		SubjectDID: idmodels.DID(doc.CredentialSubject.ID),
		IssuerDID:  idmodels.DID(doc.Issuer),
		Claims: Claims{
			AttendanceRatio:  doc.CredentialSubject.AttendanceRatio,
			SessionsAttended: doc.CredentialSubject.SessionsAttended,
			SessionsRequired: doc.CredentialSubject.SessionsRequired,
			IssuedAt:         doc.CredentialSubject.IssuedAt,
		},
		Proof: Proof{
			Type:               doc.Proof.Type,
			Created:            doc.Proof.Created,
			VerificationMethod: doc.Proof.VerificationMethod,
			ProofPurpose:       doc.Proof.ProofPurpose,
			Signature:          sig,
		},
		Status:    Status(doc.Status),
		RevokedAt: doc.RevokedAt,
	}, nil
}
