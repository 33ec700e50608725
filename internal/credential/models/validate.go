package models

import (
	"crypto/ed25519"
	"fmt"

	"presence/internal/identity/did"
	idmodels "presence/internal/identity/models"
)

// Validate is the structural check run before any signature work.
func (c Credential) Validate() error {
	if _, err := ParseCredentialID(c.ID.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := did.Validate(c.SubjectDID); err != nil {
		return fmt.Errorf("%w: subject: %v", ErrMalformed, err)
	}
	if err := did.Validate(c.IssuerDID); err != nil {
		return fmt.Errorf("%w: issuer: %v", ErrMalformed, err)
	}

	cl := c.Claims
	if cl.SessionsRequired <= 0 || cl.SessionsAttended < 0 {
		return fmt.Errorf("%w: session counts out of range", ErrMalformed)
	}
	if cl.AttendanceRatio < 0 || cl.AttendanceRatio > 1 {
		return fmt.Errorf("%w: attendance ratio out of range", ErrMalformed)
	}
	if cl.IssuedAt.IsZero() {
		return fmt.Errorf("%w: issuedAt is required", ErrMalformed)
	}

	p := c.Proof
	if p.Type != ProofType {
		return fmt.Errorf("%w: unsupported proof type %q", ErrMalformed, p.Type)
	}
	if p.ProofPurpose != ProofPurpose {
		return fmt.Errorf("%w: unsupported proof purpose %q", ErrMalformed, p.ProofPurpose)
	}
	if p.Created.IsZero() {
		return fmt.Errorf("%w: proof created is required", ErrMalformed)
	}
	method, _, err := idmodels.ParseMethodID(p.VerificationMethod)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if method != c.IssuerDID {
		return fmt.Errorf("%w: verification method is not controlled by the issuer", ErrMalformed)
	}
	if len(p.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes", ErrMalformed, ed25519.SignatureSize)
	}
	return nil
}
