package service

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"

	"presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
)

var documentContext = []string{
	"https://www.w3.org/ns/did/v1",
	"https://w3id.org/security/suites/ed25519-2018/v1",
}

// Document renders the DID document. Every key version is listed as an
// assertion method so credentials signed before a rotation still verify;
// only the current key authenticates.
func (s *Service) Document(ctx context.Context, d models.DID) (*models.Document, error) {
	rec, err := s.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	doc, err := BuildDocument(rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render did document")
	}
	return doc, nil
}

func BuildDocument(rec models.Record) (*models.Document, error) {
	doc := &models.Document{
		Context:            documentContext,
		ID:                 rec.DID,
		Controller:         rec.ControllerDID,
		VerificationMethod: make([]models.VerificationMethod, 0, len(rec.Keys)),
		AssertionMethod:    make([]string, 0, len(rec.Keys)),
		Created:            rec.CreatedAt,
	}
	for _, k := range rec.Keys {
		id := models.MethodID(rec.DID, k.Version)
		jwkKey, err := jwk.FromRaw(k.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("jwk for %s: %w", id, err)
		}
		if err := jwkKey.Set(jwk.KeyIDKey, id); err != nil {
			return nil, fmt.Errorf("set jwk kid: %w", err)
		}
		doc.VerificationMethod = append(doc.VerificationMethod, models.VerificationMethod{
			ID:              id,
			Type:            models.VerificationKeyType,
			Controller:      rec.ControllerDID,
			PublicKeyBase58: base58.Encode(k.PublicKey),
			PublicKeyJwk:    jwkKey,
		})
		doc.AssertionMethod = append(doc.AssertionMethod, id)
	}
	if len(rec.Keys) > 0 {
		doc.Authentication = []string{models.MethodID(rec.DID, rec.Current().Version)}
	}
	return doc, nil
}
