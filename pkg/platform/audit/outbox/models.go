package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "presence/pkg/platform/audit"
)

// Entry is one audit event waiting in the outbox table to be relayed.
type Entry struct {
	ID        uuid.UUID
	Category  string // audit.Category of EventType
	Subject   string // DID the event concerns; used as the Kafka key
	EventType string
	Payload   []byte // JSON-encoded audit.Event
	CreatedAt time.Time
	// ProcessedAt is nil until the entry was published.
	ProcessedAt *time.Time
}

// IsPending returns true if this entry has not been processed yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry serializes event into a new pending entry.
func NewEntry(event audit.Event, now time.Time) (*Entry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return &Entry{
		ID:        uuid.New(),
		Category:  string(audit.AuditEvent(event.Action).Category()),
		Subject:   event.Subject,
		EventType: event.Action,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}
