package handler

import (
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"presence/internal/credential/models"
	"presence/internal/credential/verifier"
	idmodels "presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/validation"
)

type IssueRequest struct {
	DID string `json:"did"`
}

func (r *IssueRequest) Normalize() {
	if r != nil {
		r.DID = strings.TrimSpace(r.DID)
	}
}

func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLength("did", r.DID, validation.MaxDIDLength); err != nil {
		return err
	}
	if r.DID == "" {
		return dErrors.New(dErrors.CodeValidation, "did is required")
	}
	return nil
}

func (r *IssueRequest) ParsedDID() idmodels.DID {
	return idmodels.DID(r.DID)
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

func (r *RevokeRequest) Normalize() {
	if r != nil {
		r.Reason = strings.TrimSpace(r.Reason)
	}
}

func (r *RevokeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLength("reason", r.Reason, validation.MaxReasonLength); err != nil {
		return err
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type RevokeResponse struct {
	CredentialID string `json:"credential_id"`
	Status       string `json:"status"`
}

type CredentialListResponse struct {
	Credentials []models.Document `json:"credentials"`
	Total       int               `json:"total"`
}

type EligibilityResponse struct {
	DID              string  `json:"did"`
	Eligible         bool    `json:"eligible"`
	AttendanceRatio  float64 `json:"attendance_ratio"`
	Threshold        float64 `json:"threshold"`
	SessionsAttended int     `json:"sessions_attended"`
	SessionsRequired int     `json:"sessions_required"`
	SessionsNeeded   int     `json:"sessions_needed"`
	HasValid         bool    `json:"has_valid_credential"`
	CredentialID     string  `json:"credential_id,omitempty"`
}

type StatsResponse struct {
	Total                  int     `json:"total"`
	Valid                  int     `json:"valid"`
	Revoked                int     `json:"revoked"`
	AverageAttendanceRatio float64 `json:"average_attendance_ratio"`
}

type SnapshotKeyResponse struct {
	DID             string `json:"did"`
	Version         int    `json:"version"`
	PublicKeyBase58 string `json:"public_key_base58"`
}

type SnapshotResponse struct {
	Issuer             string                `json:"issuer"`
	VerificationMethod string                `json:"verification_method"`
	CreatedAt          time.Time             `json:"created_at"`
	Keys               []SnapshotKeyResponse `json:"keys"`
	Revoked            []string              `json:"revoked"`
	Signature          string                `json:"signature"`
}

func toEligibilityResponse(e models.Eligibility) EligibilityResponse {
	return EligibilityResponse{
		DID:              e.SubjectDID.String(),
		Eligible:         e.Eligible,
		AttendanceRatio:  e.AttendanceRatio,
		Threshold:        e.Threshold,
		SessionsAttended: e.SessionsAttended,
		SessionsRequired: e.SessionsRequired,
		SessionsNeeded:   e.SessionsNeeded,
		HasValid:         e.HasValid,
		CredentialID:     e.ValidCredential.String(),
	}
}

func toSnapshotResponse(s *verifier.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Issuer:             s.Issuer.String(),
		VerificationMethod: s.VerificationMethod,
		CreatedAt:          s.CreatedAt,
		Keys:               make([]SnapshotKeyResponse, 0, len(s.Keys)),
		Revoked:            make([]string, 0, len(s.Revoked)),
		Signature:          "z" + base58.Encode(s.Signature),
	}
	for _, k := range s.Keys {
		resp.Keys = append(resp.Keys, SnapshotKeyResponse{
			DID:             k.DID.String(),
			Version:         k.Version,
			PublicKeyBase58: base58.Encode(k.PublicKey),
		})
	}
	for _, id := range s.Revoked {
		resp.Revoked = append(resp.Revoked, id.String())
	}
	return resp
}
