// Package canonical produces the exact bytes that credential and snapshot
// signatures cover. Encoding is RFC 8949 core deterministic CBOR, so map
// keys are sorted and integers use their shortest form.
package canonical

import (
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"presence/internal/credential/models"
)

var (
	encOnce sync.Once
	encMode cbor.EncMode
	encErr  error
)

func mode() (cbor.EncMode, error) {
	encOnce.Do(func() {
		encMode, encErr = cbor.CoreDetEncOptions().EncMode()
	})
	return encMode, encErr
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	em, err := mode()
	if err != nil {
		return nil, fmt.Errorf("canonical encoder: %w", err)
	}
	return em.Marshal(v)
}

type claimsPayload struct {
	AttendanceRatio  float64 `cbor:"attendanceRatio"`
	SessionsAttended int     `cbor:"sessionsAttended"`
	SessionsRequired int     `cbor:"sessionsRequired"`
	IssuedAt         int64   `cbor:"issuedAt"`
}

type proofPayload struct {
	Type               string `cbor:"type"`
	Created            int64  `cbor:"created"`
	VerificationMethod string `cbor:"verificationMethod"`
	ProofPurpose       string `cbor:"proofPurpose"`
}

type credentialPayload struct {
	CredentialID string        `cbor:"credentialId"`
	IssuerDID    string        `cbor:"issuerDid"`
	SubjectDID   string        `cbor:"subjectDid"`
	Claims       claimsPayload `cbor:"claims"`
	Proof        proofPayload  `cbor:"proof"`
}

// Credential returns the signed bytes of c: every field except the status
// and the signature itself. Timestamps are carried as unix milliseconds.
func Credential(c models.Credential) ([]byte, error) {
	return Marshal(credentialPayload{
		CredentialID: c.ID.String(),
		IssuerDID:    c.IssuerDID.String(),
		SubjectDID:   c.SubjectDID.String(),
		Claims: claimsPayload{
			AttendanceRatio:  c.Claims.AttendanceRatio,
			SessionsAttended: c.Claims.SessionsAttended,
			SessionsRequired: c.Claims.SessionsRequired,
			IssuedAt:         c.Claims.IssuedAt.UnixMilli(),
		},
		Proof: proofPayload{
			Type:               c.Proof.Type,
			Created:            c.Proof.Created.UnixMilli(),
			VerificationMethod: c.Proof.VerificationMethod,
			ProofPurpose:       c.Proof.ProofPurpose,
		},
	})
}

// Truncate drops sub-millisecond precision so a timestamp survives the
// canonical form and the JSON presentation unchanged.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
