package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"presence/pkg/requestcontext"
)

type recordingEmitter struct {
	events []Event
	err    error
}

func (m *recordingEmitter) Emit(_ context.Context, event Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

type LoggerSuite struct {
	suite.Suite
	emitter *recordingEmitter
	logger  *Logger
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.emitter = &recordingEmitter{}
	s.logger = NewLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), s.emitter)
}

func (s *LoggerSuite) TestEnrichesFromContext() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-77")
	ctx = requestcontext.WithActor(ctx, "registrar")

	s.logger.Log(ctx, Event{Action: string(EventCredentialRevoked), Subject: "did:key:z1", Resource: "vc_1"})

	s.Require().Len(s.emitter.events, 1)
	s.Equal("req-77", s.emitter.events[0].RequestID)
	s.Equal("registrar", s.emitter.events[0].Actor)
	s.Equal("vc_1", s.emitter.events[0].Resource)
}

func (s *LoggerSuite) TestExplicitFieldsWin() {
	ctx := requestcontext.WithActor(context.Background(), "ctx-actor")
	s.logger.Log(ctx, Event{Action: "x", Actor: "explicit"})
	s.Equal("explicit", s.emitter.events[0].Actor)
}

func (s *LoggerSuite) TestEmitErrorIsSwallowed() {
	s.emitter.err = errors.New("broker down")
	s.NotPanics(func() {
		s.logger.Log(context.Background(), Event{Action: string(EventCredentialIssued)})
	})
	s.Empty(s.emitter.events)
}

func (s *LoggerSuite) TestOptionalSinks() {
	s.NotPanics(func() {
		NewLogger(nil, nil).Log(context.Background(), Event{Action: "x"})
		var nilLogger *Logger
		nilLogger.Log(context.Background(), Event{Action: "x"})
	})

	emitter := &recordingEmitter{}
	NewLogger(nil, emitter).Log(context.Background(), Event{Action: "x"})
	s.Len(emitter.events, 1)
}

func (s *LoggerSuite) TestCategory() {
	s.Equal(CategoryCompliance, EventCredentialIssued.Category())
	s.Equal(CategoryCompliance, EventCredentialRevoked.Category())
	s.Equal(CategoryOperations, EventAttendanceRecorded.Category())
	s.Equal(CategoryOperations, AuditEvent("something_new").Category())
}

func (s *LoggerSuite) TestFanoutJoinsErrors() {
	mem := NewInMemoryStore()
	boom := errors.New("boom")
	f := Fanout{mem, failingStore{boom}}

	err := f.Append(context.Background(), Event{Action: "x", Subject: "did:key:z1"})

	s.ErrorIs(err, boom)
	events, _ := mem.ListBySubject(context.Background(), "did:key:z1")
	s.Len(events, 1)
}

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, Event) error { return f.err }
