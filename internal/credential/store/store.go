package store

import (
	"context"
	"time"

	"presence/internal/credential/models"
	idmodels "presence/internal/identity/models"
)

// Store persists issued credentials and the revocation log.
//
// Insert rejects a credential with sentinel.ErrAlreadyExists when the
// subject already holds a valid one. Revoke is a compare-and-swap from
// valid to revoked: an unknown id yields sentinel.ErrNotFound and an
// already revoked one yields sentinel.ErrInvalidState.
type Store interface {
	Insert(ctx context.Context, credential models.Credential) error
	FindByID(ctx context.Context, id models.CredentialID) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Credential, error)
	ListAll(ctx context.Context) ([]models.Credential, error)
	Revoke(ctx context.Context, id models.CredentialID, revokedAt time.Time, reason string) error
	IsRevoked(ctx context.Context, id models.CredentialID) (bool, error)
	ListRevocations(ctx context.Context) ([]models.Revocation, error)
}
