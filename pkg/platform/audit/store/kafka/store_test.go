package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/platform/kafka/producer"
	audit "presence/pkg/platform/audit"
)

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (c *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestStore_AppendPublishesKeyedRecord(t *testing.T) {
	p := &captureProducer{}
	s := New(p, "presence.audit")
	event := audit.Event{
		Timestamp: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Action:    string(audit.EventCredentialRevoked),
		Subject:   "did:key:z6MkSubject",
		Resource:  "vc_123",
		Reason:    "issued in error",
		RequestID: "req-9",
	}

	require.NoError(t, s.Append(context.Background(), event))

	require.Len(t, p.msgs, 1)
	msg := p.msgs[0]
	assert.Equal(t, "presence.audit", msg.Topic)
	assert.Equal(t, "did:key:z6MkSubject", string(msg.Key))
	assert.Equal(t, "credential_revoked", msg.Headers["event_type"])
	assert.Equal(t, "compliance", msg.Headers["category"])
	assert.Equal(t, "req-9", msg.Headers["request_id"])

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestStore_AppendWrapsProducerError(t *testing.T) {
	boom := errors.New("not enough replicas")
	s := New(&captureProducer{err: boom}, "t")

	err := s.Append(context.Background(), audit.Event{Action: "x"})
	assert.ErrorIs(t, err, boom)
}
