package validation

import (
	"fmt"

	dErrors "presence/pkg/domain-errors"
)

// MaxBodySize is the default request body limit (64 KB).
const MaxBodySize = 64 * 1024

// String element length limits
const (
	// MaxDIDLength bounds a did:key string, path parameters included.
	MaxDIDLength = 128

	// MaxAttributeLength bounds each free-text identity attribute.
	MaxAttributeLength = 200

	// MaxPublicKeyLength bounds a base58 encoded Ed25519 public key.
	MaxPublicKeyLength = 64

	// MaxTimestampLength bounds an RFC 3339 timestamp.
	MaxTimestampLength = 64

	// MaxReasonLength bounds a revocation reason.
	MaxReasonLength = 500
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates named values against the same limit,
// reporting the first offender in argument order.
func CheckEachStringLength(max int, fields ...Field) error {
	for _, f := range fields {
		if err := CheckStringLength(f.Name, f.Value, max); err != nil {
			return err
		}
	}
	return nil
}

// Field pairs a request field name with its value.
type Field struct {
	Name  string
	Value string
}
