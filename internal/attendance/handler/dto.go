package handler

import (
	"time"

	"presence/internal/attendance/models"
	idmodels "presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/validation"
)

// RecordRequest marks attendance either by DID or by card UID.
type RecordRequest struct {
	DID       string `json:"did"`
	CardUID   string `json:"card_uid"`
	Timestamp string `json:"timestamp"`

	parsedDID       idmodels.DID
	parsedCardUID   idmodels.CardUID
	parsedTimestamp time.Time
}

func (r *RecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}

	// Phase 1: Size validation
	if err := validation.CheckStringLength("did", r.DID, validation.MaxDIDLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("timestamp", r.Timestamp, validation.MaxTimestampLength); err != nil {
		return err
	}

	// Phase 2: Required fields
	if (r.DID == "") == (r.CardUID == "") {
		return dErrors.New(dErrors.CodeValidation, "exactly one of did or card_uid is required")
	}

	// Phase 3: Syntax validation
	if r.CardUID != "" {
		uid, err := idmodels.ParseCardUID(r.CardUID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, err.Error())
		}
		r.parsedCardUID = uid
	}
	if r.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "timestamp must be RFC 3339")
		}
		r.parsedTimestamp = ts
	}
	r.parsedDID = idmodels.DID(r.DID)
	return nil
}

func (r *RecordRequest) ParsedDID() idmodels.DID {
	return r.parsedDID
}

func (r *RecordRequest) ParsedCardUID() idmodels.CardUID {
	return r.parsedCardUID
}

// ParsedTimestamp is zero when the caller relies on the server clock.
func (r *RecordRequest) ParsedTimestamp() time.Time {
	return r.parsedTimestamp
}

type EventResponse struct {
	EventID    string    `json:"event_id"`
	DID        string    `json:"did"`
	DayBucket  int64     `json:"day_bucket"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventsResponse struct {
	DID              string          `json:"did"`
	Events           []EventResponse `json:"events"`
	Total            int             `json:"total"`
	SessionsRequired int             `json:"sessions_required"`
	Percentage       float64         `json:"percentage"`
}

type RatioResponse struct {
	DID              string  `json:"did"`
	Ratio            float64 `json:"ratio"`
	SessionsRequired int     `json:"sessions_required"`
}

type SummaryResponse struct {
	TotalSubjects            int     `json:"total_subjects"`
	TotalEvents              int     `json:"total_events"`
	RequiredSessions         int     `json:"required_sessions"`
	AverageAttendancePercent float64 `json:"average_attendance_percent"`
	OverallAttendancePercent float64 `json:"overall_attendance_percent"`
	SubjectsWithCertificates int     `json:"subjects_with_certificates"`
	SubjectsMeetingThreshold int     `json:"subjects_meeting_threshold"`
}

func toEventResponse(e models.Event) EventResponse {
	return EventResponse{
		EventID:    e.EventID,
		DID:        e.SubjectDID.String(),
		DayBucket:  e.DayBucket,
		SessionID:  e.SessionID,
		OccurredAt: e.OccurredAt.UTC(),
	}
}
