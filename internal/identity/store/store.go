package store

import (
	"context"

	"presence/internal/identity/models"
)

// Store persists DID records and the subjects bound to them.
//
// Create fails with sentinel.ErrAlreadyExists when the card UID is already
// bound and with sentinel.ErrConflict when the DID is already registered.
// AppendKey requires key.Version to be the next version; a concurrent
// rotation that lands first yields sentinel.ErrConflict. SetCardStatus
// returns sentinel.ErrNotFound when no subject holds the card.
type Store interface {
	Create(ctx context.Context, record models.Record, subject models.Subject) error
	FindRecord(ctx context.Context, did models.DID) (models.Record, error)
	FindSubject(ctx context.Context, did models.DID) (models.Subject, error)
	FindSubjectByCard(ctx context.Context, uid models.CardUID) (models.Subject, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListRecords(ctx context.Context) ([]models.Record, error)
	AppendKey(ctx context.Context, did models.DID, key models.KeyVersion) error
	SetCardStatus(ctx context.Context, uid models.CardUID, status models.CardStatus) (models.Subject, error)
}
