package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"presence/internal/credential/issuer"
	idmodels "presence/internal/identity/models"
)

// certificateCounter lets the attendance ledger report certificate counts
// from the issuer, which is constructed after the ledger it depends on.
type certificateCounter struct {
	issuer *issuer.Service
}

func (c *certificateCounter) CountSubjectsWithValid(ctx context.Context) (int, error) {
	if c.issuer == nil {
		return 0, errors.New("issuer not wired")
	}
	return c.issuer.CountSubjectsWithValid(ctx)
}

// keyVersion finds the version under which pub is registered for the issuer.
// A keystore key that was rotated out of the record is a startup error.
func keyVersion(record idmodels.Record, pub ed25519.PublicKey) (int, error) {
	for _, k := range record.Keys {
		if k.PublicKey.Equal(pub) {
			return k.Version, nil
		}
	}
	return 0, fmt.Errorf("issuer key is not registered for %s", record.DID)
}
