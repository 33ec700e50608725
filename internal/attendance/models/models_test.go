package models

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayBucket(t *testing.T) {
	assert.Equal(t, int64(0), DayBucket(time.UnixMilli(0)))
	assert.Equal(t, int64(0), DayBucket(time.UnixMilli(MillisPerDay-1)))
	assert.Equal(t, int64(1), DayBucket(time.UnixMilli(MillisPerDay)))
	assert.Equal(t, int64(-1), DayBucket(time.UnixMilli(-1)))

	morning := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, DayBucket(morning), DayBucket(evening))
	assert.Equal(t, DayBucket(morning)+1, DayBucket(morning.Add(24*time.Hour)))
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	e := NewEvent("did:key:z6MkA", at)

	assert.Equal(t, "session-"+strconv.FormatInt(DayBucket(at), 10), e.SessionID)
	assert.Len(t, e.EventID, 64)
	assert.Equal(t, e.EventID, NewEvent("did:key:z6MkA", at.Add(time.Hour)).EventID, "same day, same id")
	assert.NotEqual(t, e.EventID, NewEvent("did:key:z6MkB", at).EventID)
	assert.NotEqual(t, e.EventID, NewEvent("did:key:z6MkA", at.Add(24*time.Hour)).EventID)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.8, Ratio(8, 10))
	assert.Equal(t, 1.0, Ratio(12, 10))
	assert.Equal(t, 0.0, Ratio(0, 10))
	assert.Equal(t, 0.0, Ratio(3, 0))

	prev := 0.0
	for n := 0; n <= 15; n++ {
		r := Ratio(n, 10)
		assert.GreaterOrEqual(t, r, prev)
		assert.LessOrEqual(t, r, 1.0)
		prev = r
	}
}
