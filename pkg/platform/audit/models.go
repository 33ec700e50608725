package audit

import (
	"time"
)

// Event records one audit-significant action. It is transport-agnostic so
// stores and sinks (memory, Kafka) can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	// Subject is the DID the action concerns.
	Subject string `json:"subject,omitempty"`
	// Resource identifies the affected object, e.g. a credential or event id.
	Resource  string `json:"resource,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventIdentityCreated    AuditEvent = "identity_created"
	EventKeyRotated         AuditEvent = "key_rotated"
	EventCardStatusChanged  AuditEvent = "card_status_changed"
	EventAttendanceRecorded AuditEvent = "attendance_recorded"
	EventCredentialIssued   AuditEvent = "credential_issued"
	EventCredentialRevoked  AuditEvent = "credential_revoked"
	EventCredentialVerified AuditEvent = "credential_verified"
)

// Category groups events for retention and alerting.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

// Category reports the group an event belongs to. Credential lifecycle
// changes are compliance events; everything else, including unknown
// actions, is operational.
func (e AuditEvent) Category() Category {
	switch e {
	case EventIdentityCreated, EventKeyRotated, EventCardStatusChanged, EventCredentialIssued, EventCredentialRevoked:
		return CategoryCompliance
	default:
		return CategoryOperations
	}
}
