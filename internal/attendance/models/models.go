package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	idmodels "presence/internal/identity/models"
)

// MillisPerDay is the width of a day bucket.
const MillisPerDay int64 = 86_400_000

// Event is one accepted attendance mark. Events are never mutated or deleted.
type Event struct {
	EventID    string
	SubjectDID idmodels.DID
	DayBucket  int64
	SessionID  string
	OccurredAt time.Time
}

// DayBucket returns floor(unixMillis / MillisPerDay). Times before the epoch
// round toward negative infinity so every day has a single bucket.
func DayBucket(t time.Time) int64 {
	ms := t.UnixMilli()
	bucket := ms / MillisPerDay
	if ms%MillisPerDay < 0 {
		bucket--
	}
	return bucket
}

// SessionID names the session held on a day bucket.
func SessionID(day int64) string {
	return "session-" + strconv.FormatInt(day, 10)
}

// EventID is the hex SHA-256 of subject, day bucket and session, so the
// same mark always hashes to the same id regardless of storage order.
func EventID(subject idmodels.DID, day int64, sessionID string) string {
	h := sha256.New()
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(day, 10)))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// NewEvent builds the event for subject at t.
func NewEvent(subject idmodels.DID, t time.Time) Event {
	day := DayBucket(t)
	session := SessionID(day)
	return Event{
		EventID:    EventID(subject, day, session),
		SubjectDID: subject,
		DayBucket:  day,
		SessionID:  session,
		OccurredAt: t.UTC(),
	}
}

// Ratio returns attended/required clamped to [0,1].
func Ratio(attended, required int) float64 {
	if required <= 0 || attended <= 0 {
		return 0
	}
	if attended >= required {
		return 1
	}
	return float64(attended) / float64(required)
}

// Summary is the system-wide attendance overview.
type Summary struct {
	TotalSubjects            int
	TotalEvents              int
	RequiredSessions         int
	AverageAttendancePercent float64
	OverallAttendancePercent float64
	SubjectsWithCertificates int
	SubjectsMeetingThreshold int
}
