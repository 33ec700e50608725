package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	audit "presence/pkg/platform/audit"
)

// Store defines the outbox persistence operations.
// Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes processed entries older than before and
	// returns how many were deleted.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Recorder adapts an outbox Store to audit.Store so the audit publisher can
// write through the outbox instead of straight to Kafka.
type Recorder struct {
	store Store
	now   func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) Append(ctx context.Context, event audit.Event) error {
	entry, err := NewEntry(event, r.now())
	if err != nil {
		return err
	}
	return r.store.Append(ctx, entry)
}

var _ audit.Store = (*Recorder)(nil)
