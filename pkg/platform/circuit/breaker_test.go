package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newBreaker(c *clock) *Breaker {
	return New("redis",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(c.now),
	)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker(&clock{t: time.Unix(0, 0)})

	assert.Equal(t, StateChange{}, b.RecordFailure())
	b.RecordSuccess()
	assert.Equal(t, StateChange{}, b.RecordFailure())
	assert.True(t, b.Allow(), "a success resets the failure count")

	assert.Equal(t, StateChange{Opened: true}, b.RecordFailure())
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerTrialsAfterCooldown(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newBreaker(c)
	b.RecordFailure()
	b.RecordFailure()

	c.t = c.t.Add(59 * time.Second)
	assert.False(t, b.Allow())

	c.t = c.t.Add(time.Second)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	assert.Equal(t, StateChange{}, b.RecordSuccess())
	assert.Equal(t, StateChange{Closed: true}, b.RecordSuccess())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newBreaker(c)
	b.RecordFailure()
	b.RecordFailure()

	c.t = c.t.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "cooldown restarts from the failed trial")
}

func TestBreakerReset(t *testing.T) {
	b := newBreaker(&clock{t: time.Unix(0, 0)})
	b.RecordFailure()
	b.RecordFailure()

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.Equal(t, "redis", b.Name())
}
