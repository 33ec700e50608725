package handler

import (
	"crypto/ed25519"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/validation"
)

const enrollmentLayout = "2006-01-02"

// CreateIdentityRequest registers a subject and binds their NFC card.
type CreateIdentityRequest struct {
	CardUID        string `json:"card_uid"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Department     string `json:"department"`
	EnrollmentDate string `json:"enrollment_date"`

	parsedCardUID models.CardUID
}

func (r *CreateIdentityRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Department = strings.TrimSpace(r.Department)
	r.EnrollmentDate = strings.TrimSpace(r.EnrollmentDate)
}

func (r *CreateIdentityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	// Phase 1: Size validation
	if err := validation.CheckEachStringLength(validation.MaxAttributeLength,
		validation.Field{Name: "name", Value: r.Name},
		validation.Field{Name: "email", Value: r.Email},
		validation.Field{Name: "department", Value: r.Department},
	); err != nil {
		return err
	}

	// Phase 2: Required fields
	if r.CardUID == "" {
		return dErrors.New(dErrors.CodeValidation, "card_uid is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	// Phase 3: Syntax validation
	uid, err := models.ParseCardUID(r.CardUID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if r.EnrollmentDate != "" {
		if _, err := time.Parse(enrollmentLayout, r.EnrollmentDate); err != nil {
			return dErrors.New(dErrors.CodeValidation, "enrollment_date must be YYYY-MM-DD")
		}
	}

	r.parsedCardUID = uid
	return nil
}

func (r *CreateIdentityRequest) ParsedCardUID() models.CardUID {
	return r.parsedCardUID
}

func (r *CreateIdentityRequest) Attributes() models.Attributes {
	return models.Attributes{
		Name:           r.Name,
		Email:          r.Email,
		Department:     r.Department,
		EnrollmentDate: r.EnrollmentDate,
	}
}

// RotateKeyRequest carries the new public key, base58 encoded.
type RotateKeyRequest struct {
	PublicKey string `json:"public_key_base58"`

	parsedKey ed25519.PublicKey
}

func (r *RotateKeyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLength("public_key_base58", r.PublicKey, validation.MaxPublicKeyLength); err != nil {
		return err
	}
	if r.PublicKey == "" {
		return dErrors.New(dErrors.CodeValidation, "public_key_base58 is required")
	}
	raw, err := base58.Decode(r.PublicKey)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return dErrors.New(dErrors.CodeValidation, "public_key_base58 must encode a 32 byte ed25519 key")
	}
	r.parsedKey = raw
	return nil
}

func (r *RotateKeyRequest) ParsedKey() ed25519.PublicKey {
	return r.parsedKey
}
