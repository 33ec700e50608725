package store

import (
	"context"

	"presence/internal/attendance/models"
	idmodels "presence/internal/identity/models"
)

// Store is the append-only attendance ledger.
//
// Append is put-if-absent on (subject, day bucket): an existing event for
// the pair yields sentinel.ErrAlreadyExists and the stored event is kept.
// ListBySubject returns events in non-decreasing OccurredAt order.
type Store interface {
	Append(ctx context.Context, event models.Event) error
	ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Event, error)
	CountBySubject(ctx context.Context, subject idmodels.DID) (int, error)
	CountAll(ctx context.Context) (map[idmodels.DID]int, error)
}
