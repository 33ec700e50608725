package handler

import (
	"encoding/base64"
	"time"

	"github.com/mr-tron/base58"

	"presence/internal/identity/models"
)

type KeyResponse struct {
	ID              string    `json:"id"`
	Version         int       `json:"version"`
	PublicKeyBase58 string    `json:"public_key_base58"`
	CreatedAt       time.Time `json:"created_at"`
}

type RecordResponse struct {
	DID           string        `json:"did"`
	ControllerDID string        `json:"controller_did"`
	PublicKey     string        `json:"public_key_base58"`
	Keys          []KeyResponse `json:"keys"`
	CreatedAt     time.Time     `json:"created_at"`
}

type SubjectResponse struct {
	DID            string    `json:"did"`
	CardUID        string    `json:"card_uid,omitempty"`
	CardType       string    `json:"card_type,omitempty"`
	CardStatus     string    `json:"card_status,omitempty"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Department     string    `json:"department,omitempty"`
	EnrollmentDate string    `json:"enrollment_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateIdentityResponse is the only response that ever carries the
// subject's private key.
type CreateIdentityResponse struct {
	RecordResponse
	Subject       SubjectResponse `json:"subject"`
	PrivateKey    string          `json:"private_key"`
	PrivateKeyEnc string          `json:"private_key_encoding"`
}

type SubjectListResponse struct {
	Subjects []SubjectResponse `json:"subjects"`
	Total    int               `json:"total"`
}

type CardResponse struct {
	CardUID    string `json:"card_uid"`
	CardType   string `json:"card_type"`
	CardStatus string `json:"card_status"`
	DID        string `json:"did"`
	Name       string `json:"name"`
}

func toRecordResponse(rec models.Record) RecordResponse {
	keys := make([]KeyResponse, 0, len(rec.Keys))
	for _, k := range rec.Keys {
		keys = append(keys, KeyResponse{
			ID:              models.MethodID(rec.DID, k.Version),
			Version:         k.Version,
			PublicKeyBase58: base58.Encode(k.PublicKey),
			CreatedAt:       k.CreatedAt.UTC(),
		})
	}
	return RecordResponse{
		DID:           rec.DID.String(),
		ControllerDID: rec.ControllerDID.String(),
		PublicKey:     base58.Encode(rec.PublicKey()),
		Keys:          keys,
		CreatedAt:     rec.CreatedAt.UTC(),
	}
}

func toSubjectResponse(subj models.Subject) SubjectResponse {
	resp := SubjectResponse{
		DID:            subj.DID.String(),
		Name:           subj.Attributes.Name,
		Email:          subj.Attributes.Email,
		Department:     subj.Attributes.Department,
		EnrollmentDate: subj.Attributes.EnrollmentDate,
		CreatedAt:      subj.CreatedAt.UTC(),
	}
	if subj.HasCard() {
		resp.CardUID = subj.CardUID.String()
		resp.CardType = string(subj.CardUID.Type())
		resp.CardStatus = string(subj.CardStatus)
	}
	return resp
}

func toCreateResponse(created *models.CreatedIdentity) CreateIdentityResponse {
	return CreateIdentityResponse{
		RecordResponse: toRecordResponse(created.Record),
		Subject:        toSubjectResponse(created.Subject),
		PrivateKey:     base64.StdEncoding.EncodeToString(created.PrivateKey),
		PrivateKeyEnc:  "base64-ed25519-private-key",
	}
}

func toCardResponse(uid models.CardUID, subj models.Subject) CardResponse {
	return CardResponse{
		CardUID:    uid.String(),
		CardType:   string(uid.Type()),
		CardStatus: string(subj.CardStatus),
		DID:        subj.DID.String(),
		Name:       subj.Attributes.Name,
	}
}
