package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"presence/internal/attendance/models"
	"presence/internal/attendance/store"
	idmodels "presence/internal/identity/models"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	requesttime "presence/pkg/platform/middleware/requesttime"
	"presence/pkg/platform/sentinel"
	platformsync "presence/pkg/platform/sync"
)

// Registry resolves subjects for the ledger.
type Registry interface {
	Resolve(ctx context.Context, did idmodels.DID) (idmodels.Record, error)
	Subject(ctx context.Context, did idmodels.DID) (idmodels.Subject, error)
	ResolveByCard(ctx context.Context, uid idmodels.CardUID) (idmodels.Subject, error)
	ListSubjects(ctx context.Context) ([]idmodels.Subject, error)
}

// CertificateCounter reports how many subjects hold a valid credential.
type CertificateCounter interface {
	CountSubjectsWithValid(ctx context.Context) (int, error)
}

// Policy carries the issuance policy values the ledger reports against.
type Policy struct {
	RequiredSessions int
	Threshold        float64
}

type Option func(*Service)

// Service is the attendance ledger.
type Service struct {
	store        store.Store
	registry     Registry
	policy       Policy
	tx           *subjectTx
	certificates CertificateCounter
	metrics      *metrics.Metrics
	auditor      *audit.Logger
	logger       *slog.Logger
}

func New(store store.Store, registry Registry, policy Policy, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		registry: registry,
		policy:   policy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.tx = &subjectTx{
		mu:      platformsync.NewShardedMutex(platformsync.DefaultShards),
		metrics: svc.metrics,
	}
	return svc
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(auditor *audit.Logger) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCertificateCounter enables the certificate count in Summary.
func WithCertificateCounter(c CertificateCounter) Option {
	return func(s *Service) {
		s.certificates = c
	}
}

// RecordEvent appends the attendance mark for subject at ts. Only subjects
// holding an active card can attend; DIDs registered without a card, such
// as the issuer's, are rejected as unknown subjects.
func (s *Service) RecordEvent(ctx context.Context, subject idmodels.DID, ts time.Time) (models.Event, error) {
	subj, err := s.registry.Subject(ctx, subject)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.metrics.IncAttendanceRejected("unknown_subject")
			return models.Event{}, dErrors.New(dErrors.CodeUnknownSubject, "subject did does not resolve")
		}
		return models.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subject")
	}
	return s.record(ctx, subj, ts)
}

// RecordByCard resolves the card to its subject and records the mark.
func (s *Service) RecordByCard(ctx context.Context, uid idmodels.CardUID, ts time.Time) (models.Event, error) {
	subj, err := s.registry.ResolveByCard(ctx, uid)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.metrics.IncAttendanceRejected("unknown_card")
			return models.Event{}, dErrors.New(dErrors.CodeUnknownSubject, "card is not registered")
		}
		return models.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve card")
	}
	return s.record(ctx, subj, ts)
}

// record is the only write path of the ledger.
func (s *Service) record(ctx context.Context, subj idmodels.Subject, ts time.Time) (models.Event, error) {
	if !subj.HasCard() {
		s.metrics.IncAttendanceRejected("no_card")
		return models.Event{}, dErrors.New(dErrors.CodeUnknownSubject, "subject is not bound to a card")
	}
	if subj.CardStatus == idmodels.CardInactive {
		s.metrics.IncAttendanceRejected("inactive_card")
		return models.Event{}, dErrors.New(dErrors.CodeForbidden, "card is inactive")
	}
	if ts.IsZero() {
		ts = requesttime.Now(ctx)
	}

	subject := subj.DID
	event := models.NewEvent(subject, ts)
	err := s.tx.RunInTx(ctx, subject.String(), func(ctx context.Context) error {
		return s.store.Append(ctx, event)
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyExists):
			s.metrics.IncAttendanceRejected("duplicate_for_day")
			return models.Event{}, dErrors.New(dErrors.CodeDuplicateForDay, "attendance already recorded for this day")
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.IncAttendanceRejected("unknown_subject")
			return models.Event{}, dErrors.New(dErrors.CodeUnknownSubject, "subject did does not resolve")
		}
		return models.Event{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
	}

	s.metrics.IncAttendanceRecorded()
	s.auditor.Log(ctx, audit.Event{
		Timestamp: requesttime.Now(ctx),
		Action:    string(audit.EventAttendanceRecorded),
		Subject:   subject.String(),
		Resource:  event.EventID,
		Decision:  "accepted",
	})
	return event, nil
}

// Events returns the subject's events in non-decreasing OccurredAt order.
func (s *Service) Events(ctx context.Context, subject idmodels.DID) ([]models.Event, error) {
	if err := s.requireSubject(ctx, subject); err != nil {
		return nil, err
	}
	events, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return events, nil
}

// Count returns the number of accepted events for subject.
func (s *Service) Count(ctx context.Context, subject idmodels.DID) (int, error) {
	if err := s.requireSubject(ctx, subject); err != nil {
		return 0, err
	}
	n, err := s.store.CountBySubject(ctx, subject)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count attendance")
	}
	return n, nil
}

// AttendanceRatio returns count/totalRequired clamped to [0,1].
func (s *Service) AttendanceRatio(ctx context.Context, subject idmodels.DID, totalRequired int) (float64, error) {
	if totalRequired <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "required sessions must be positive")
	}
	n, err := s.Count(ctx, subject)
	if err != nil {
		return 0, err
	}
	return models.Ratio(n, totalRequired), nil
}

// Summary aggregates attendance over every card-bound subject.
func (s *Service) Summary(ctx context.Context) (models.Summary, error) {
	subjects, err := s.registry.ListSubjects(ctx)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subjects")
	}
	counts, err := s.store.CountAll(ctx)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count attendance")
	}

	required := s.policy.RequiredSessions
	summary := models.Summary{TotalSubjects: len(subjects), RequiredSessions: required}
	var ratioSum float64
	for _, subj := range subjects {
		n := counts[subj.DID]
		summary.TotalEvents += n
		ratio := models.Ratio(n, required)
		ratioSum += ratio
		if ratio >= s.policy.Threshold && required > 0 {
			summary.SubjectsMeetingThreshold++
		}
	}
	if len(subjects) > 0 && required > 0 {
		summary.AverageAttendancePercent = round2(ratioSum / float64(len(subjects)) * 100)
		overall := float64(summary.TotalEvents) / float64(len(subjects)*required)
		summary.OverallAttendancePercent = round2(math.Min(overall, 1) * 100)
	}

	if s.certificates != nil {
		n, err := s.certificates.CountSubjectsWithValid(ctx)
		if err != nil {
			return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates")
		}
		summary.SubjectsWithCertificates = n
	}
	return summary, nil
}

func (s *Service) requireSubject(ctx context.Context, subject idmodels.DID) error {
	if _, err := s.registry.Resolve(ctx, subject); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeUnknownSubject, "subject did does not resolve")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subject")
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
