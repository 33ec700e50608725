package models

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	idmodels "presence/internal/identity/models"
)

const (
	ProofType    = "Ed25519Signature2020"
	ProofPurpose = "assertionMethod"

	credentialIDPrefix = "vc_"
)

// CredentialID identifies a credential as "vc_<uuid>".
type CredentialID string

func (id CredentialID) String() string { return string(id) }

func NewCredentialID() CredentialID {
	return CredentialID(credentialIDPrefix + uuid.NewString())
}

var ErrInvalidCredentialID = errors.New("credential id must be vc_<uuid>")

func ParseCredentialID(raw string) (CredentialID, error) {
	rest, ok := strings.CutPrefix(raw, credentialIDPrefix)
	if !ok {
		return "", ErrInvalidCredentialID
	}
	if _, err := uuid.Parse(rest); err != nil {
		return "", ErrInvalidCredentialID
	}
	return CredentialID(raw), nil
}

type Status string

const (
	StatusValid   Status = "valid"
	StatusRevoked Status = "revoked"
)

// Claims is the attestation made about the subject.
type Claims struct {
	AttendanceRatio  float64
	SessionsAttended int
	SessionsRequired int
	IssuedAt         time.Time
}

// Proof is a detached Ed25519 signature over the canonical payload.
type Proof struct {
	Type               string
	Created            time.Time
	VerificationMethod string
	ProofPurpose       string
	Signature          []byte
}

// Credential is a verifiable attendance credential. Status moves only from
// Valid to Revoked.
type Credential struct {
	ID         CredentialID
	SubjectDID idmodels.DID
	IssuerDID  idmodels.DID
	Claims     Claims
	Proof      Proof
	Status     Status
	RevokedAt  *time.Time
}

// Revocation is an append-only revocation entry.
type Revocation struct {
	CredentialID CredentialID
	RevokedAt    time.Time
	Reason       string
}

// MinimumSessions is the smallest attended count whose ratio meets threshold.
func MinimumSessions(threshold float64, required int) int {
	if required <= 0 || threshold <= 0 {
		return 0
	}
	// tolerate representation error such as 0.7*10 = 7.000000000000001
	return int(math.Ceil(threshold*float64(required) - 1e-9))
}

// Eligibility reports where a subject stands against the issuance policy.
type Eligibility struct {
	SubjectDID       idmodels.DID
	Eligible         bool
	AttendanceRatio  float64
	Threshold        float64
	SessionsAttended int
	SessionsRequired int
	SessionsNeeded   int
	HasValid         bool
	ValidCredential  CredentialID
}

// Stats aggregates issued credentials.
type Stats struct {
	Total                  int
	Valid                  int
	Revoked                int
	AverageAttendanceRatio float64
}
