package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Registry,CertificateCounter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"presence/internal/attendance/models"
	"presence/internal/attendance/service/mocks"
	"presence/internal/attendance/store"
	idmodels "presence/internal/identity/models"
	idservice "presence/internal/identity/service"
	idstore "presence/internal/identity/store"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	fixtures "presence/pkg/testutil"
)

type LedgerSuite struct {
	suite.Suite
	ctx      context.Context
	registry *idservice.Service
	store    *store.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service
	subject  idmodels.DID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.registry = idservice.New(idstore.NewInMemoryStore(), idservice.WithKeyGenerator(fixtures.SequentialKeys(1)))
	s.store = store.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, s.registry, Policy{RequiredSessions: 10, Threshold: 0.8},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
	s.subject = s.newSubject("A1B2C3D4")
}

func (s *LedgerSuite) newSubject(uid idmodels.CardUID) idmodels.DID {
	created, err := s.registry.CreateIdentity(s.ctx, uid, idmodels.Attributes{Name: "Subject " + uid.String()})
	s.Require().NoError(err)
	return created.Record.DID
}

func (s *LedgerSuite) TestDuplicateDayKeepsOneEvent() {
	first, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(0))
	s.Require().NoError(err)

	_, err = s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(0).Add(5*time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateForDay))

	events, err := s.service.Events(s.ctx, s.subject)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(first.EventID, events[0].EventID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.AttendanceRejected.WithLabelValues("duplicate_for_day")))
}

func (s *LedgerSuite) TestUnknownSubject() {
	_, err := s.service.RecordEvent(s.ctx, "did:key:z6MkUnknown", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownSubject))

	_, err = s.service.AttendanceRatio(s.ctx, "did:key:z6MkUnknown", 10)
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownSubject))

	_, err = s.service.RecordByCard(s.ctx, "FFFFFFFF", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownSubject))
}

func (s *LedgerSuite) TestRatioIsMonotonicAndClamped() {
	prev := -1.0
	for day := 0; day < 12; day++ {
		_, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(day))
		s.Require().NoError(err)

		ratio, err := s.service.AttendanceRatio(s.ctx, s.subject, 10)
		s.Require().NoError(err)
		s.GreaterOrEqual(ratio, prev)
		s.GreaterOrEqual(ratio, 0.0)
		s.LessOrEqual(ratio, 1.0)
		prev = ratio
	}
	s.Equal(1.0, prev)

	_, err := s.service.AttendanceRatio(s.ctx, s.subject, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LedgerSuite) TestEightOfTenWithDuplicate() {
	for day := 0; day < 8; day++ {
		_, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(day))
		s.Require().NoError(err)
	}
	ratio, err := s.service.AttendanceRatio(s.ctx, s.subject, 10)
	s.Require().NoError(err)
	s.Equal(0.8, ratio)

	_, err = s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(3).Add(2*time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateForDay))

	ratio, err = s.service.AttendanceRatio(s.ctx, s.subject, 10)
	s.Require().NoError(err)
	s.Equal(0.8, ratio)
}

func (s *LedgerSuite) TestConcurrentSameDay() {
	result := fixtures.RunConcurrent(24, func(i int) error {
		_, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(0).Add(time.Duration(i)*time.Second))
		return err
	})
	s.Equal(int32(1), result.Successes)
	s.Equal(int32(23), result.Conflicts)
	s.Zero(result.Errors)

	n, err := s.service.Count(s.ctx, s.subject)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *LedgerSuite) TestEventsAreOrdered() {
	for _, day := range []int{4, 1, 3} {
		_, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(day))
		s.Require().NoError(err)
	}
	events, err := s.service.Events(s.ctx, s.subject)
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.True(events[0].OccurredAt.Equal(fixtures.Day(1)))
	s.True(events[2].OccurredAt.Equal(fixtures.Day(4)))
	s.Equal(models.SessionID(events[0].DayBucket), events[0].SessionID)
}

func (s *LedgerSuite) TestRecordByCard() {
	event, err := s.service.RecordByCard(s.ctx, "A1B2C3D4", fixtures.Day(0))
	s.Require().NoError(err)
	s.Equal(s.subject, event.SubjectDID)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.AttendanceRecorded))
}

func (s *LedgerSuite) TestDeactivatedCardIsForbidden() {
	_, err := s.registry.DeactivateCard(s.ctx, "A1B2C3D4")
	s.Require().NoError(err)

	_, err = s.service.RecordByCard(s.ctx, "A1B2C3D4", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	_, err = s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.AttendanceRejected.WithLabelValues("inactive_card")))

	count, err := s.service.Count(s.ctx, s.subject)
	s.Require().NoError(err)
	s.Zero(count)

	_, err = s.registry.ReactivateCard(s.ctx, "A1B2C3D4")
	s.Require().NoError(err)
	_, err = s.service.RecordByCard(s.ctx, "A1B2C3D4", fixtures.Day(0))
	s.NoError(err)
}

func (s *LedgerSuite) TestCardlessDIDCannotAttend() {
	pub, _ := fixtures.KeyPair(200)
	issuer, err := s.registry.RegisterIssuer(s.ctx, pub, "Registrar")
	s.Require().NoError(err)

	_, err = s.service.RecordEvent(s.ctx, issuer.DID, fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeUnknownSubject))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.AttendanceRejected.WithLabelValues("no_card")))

	events, err := s.store.ListBySubject(s.ctx, issuer.DID)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *LedgerSuite) TestSummary() {
	other := s.newSubject("B1B2C3D4")
	for day := 0; day < 8; day++ {
		_, err := s.service.RecordEvent(s.ctx, s.subject, fixtures.Day(day))
		s.Require().NoError(err)
	}
	for day := 0; day < 4; day++ {
		_, err := s.service.RecordEvent(s.ctx, other, fixtures.Day(day))
		s.Require().NoError(err)
	}

	summary, err := s.service.Summary(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, summary.TotalSubjects)
	s.Equal(12, summary.TotalEvents)
	s.Equal(60.0, summary.AverageAttendancePercent)
	s.Equal(60.0, summary.OverallAttendancePercent)
	s.Equal(1, summary.SubjectsMeetingThreshold)
	s.Zero(summary.SubjectsWithCertificates)
}

type LedgerErrorSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	registry *mocks.MockRegistry
	certs    *mocks.MockCertificateCounter
	service  *Service
}

func TestLedgerErrorSuite(t *testing.T) {
	suite.Run(t, new(LedgerErrorSuite))
}

func (s *LedgerErrorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.certs = mocks.NewMockCertificateCounter(s.ctrl)
	s.service = New(store.NewInMemoryStore(), s.registry, Policy{RequiredSessions: 10, Threshold: 0.8},
		WithCertificateCounter(s.certs))
}

func (s *LedgerErrorSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LedgerErrorSuite) TestInactiveCardIsRejected() {
	s.registry.EXPECT().ResolveByCard(gomock.Any(), idmodels.CardUID("A1B2C3D4")).
		Return(idmodels.Subject{DID: "did:key:z6MkA", CardUID: "A1B2C3D4", CardStatus: idmodels.CardInactive}, nil)

	_, err := s.service.RecordByCard(context.Background(), "A1B2C3D4", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *LedgerErrorSuite) TestRegistryFailureIsInternal() {
	boom := errors.New("registry unavailable")
	s.registry.EXPECT().Subject(gomock.Any(), gomock.Any()).Return(idmodels.Subject{}, boom)

	_, err := s.service.RecordEvent(context.Background(), "did:key:z6MkA", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, boom)
}

func (s *LedgerErrorSuite) TestSummaryCountsCertificates() {
	s.registry.EXPECT().ListSubjects(gomock.Any()).Return(nil, nil)
	s.certs.EXPECT().CountSubjectsWithValid(gomock.Any()).Return(3, nil)

	summary, err := s.service.Summary(context.Background())
	s.Require().NoError(err)
	s.Equal(3, summary.SubjectsWithCertificates)
	s.Zero(summary.AverageAttendancePercent)
}

func (s *LedgerErrorSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.registry.EXPECT().Subject(gomock.Any(), gomock.Any()).
		Return(idmodels.Subject{DID: "did:key:z6MkA", CardUID: "A1B2C3D4", CardStatus: idmodels.CardActive}, nil)

	_, err := s.service.RecordEvent(ctx, "did:key:z6MkA", fixtures.Day(0))
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
