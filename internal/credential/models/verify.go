package models

import (
	dErrors "presence/pkg/domain-errors"
)

// Reason is the first check a credential failed. Values are the matching
// domain error codes.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMalformedCredential Reason = Reason(dErrors.CodeMalformedCredential)
	ReasonInvalidSignature    Reason = Reason(dErrors.CodeInvalidSignature)
	ReasonRevoked             Reason = Reason(dErrors.CodeRevoked)
	ReasonUnknownSubject      Reason = Reason(dErrors.CodeUnknownSubject)
)

type VerifyResult struct {
	Valid  bool
	Reason Reason
	Detail string
}

func Valid() VerifyResult {
	return VerifyResult{Valid: true}
}

func Invalid(reason Reason, detail string) VerifyResult {
	return VerifyResult{Reason: reason, Detail: detail}
}
