package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	attmodels "presence/internal/attendance/models"
	"presence/internal/credential/canonical"
	"presence/internal/credential/models"
	"presence/internal/credential/store"
	"presence/internal/identity/did"
	idmodels "presence/internal/identity/models"
	"presence/internal/keys"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	requesttime "presence/pkg/platform/middleware/requesttime"
	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

// Ledger is the attendance read model used for eligibility.
type Ledger interface {
	Count(ctx context.Context, subject idmodels.DID) (int, error)
}

// RevocationCache is told about every revocation after it commits.
type RevocationCache interface {
	Add(ctx context.Context, id models.CredentialID)
}

// Policy is the issuance policy: a subject is eligible once
// attended/RequiredSessions reaches Threshold.
type Policy struct {
	RequiredSessions int
	Threshold        float64
}

type Option func(*Service)

// Service issues and revokes attendance credentials.
type Service struct {
	store     store.Store
	ledger    Ledger
	signer    keys.Signer
	issuerDID idmodels.DID
	policy    Policy
	cache     RevocationCache
	metrics   *metrics.Metrics
	auditor   *audit.Logger
	logger    *slog.Logger
}

// New builds the issuer. The issuer DID is taken from the signer's
// verification method id.
func New(store store.Store, ledger Ledger, signer keys.Signer, policy Policy, opts ...Option) (*Service, error) {
	issuerDID, _, err := idmodels.ParseMethodID(signer.KeyID())
	if err != nil {
		return nil, fmt.Errorf("issuer signer key id: %w", err)
	}
	if err := did.Validate(issuerDID); err != nil {
		return nil, fmt.Errorf("issuer signer key id: %w", err)
	}
	if policy.RequiredSessions <= 0 {
		return nil, fmt.Errorf("required sessions must be positive, got %d", policy.RequiredSessions)
	}
	if policy.Threshold <= 0 || policy.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0,1], got %v", policy.Threshold)
	}
	svc := &Service{
		store:     store,
		ledger:    ledger,
		signer:    signer,
		issuerDID: issuerDID,
		policy:    policy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
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

func WithRevocationCache(c RevocationCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// IssuerDID is the DID credentials are issued under.
func (s *Service) IssuerDID() idmodels.DID {
	return s.issuerDID
}

func (s *Service) Policy() Policy {
	return s.policy
}

// Issue signs and stores a credential for subject. Attendance is re-read on
// every call; the store guarantees at most one valid credential per subject.
func (s *Service) Issue(ctx context.Context, subject idmodels.DID) (*models.Credential, error) {
	attended, err := s.ledger.Count(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attendance")
	}
	if attended < models.MinimumSessions(s.policy.Threshold, s.policy.RequiredSessions) {
		s.metrics.IncIssuanceRejected(string(dErrors.CodeInsufficientAttendance))
		return nil, dErrors.New(dErrors.CodeInsufficientAttendance,
			fmt.Sprintf("attended %d of %d sessions, threshold is %.0f%%",
				attended, s.policy.RequiredSessions, s.policy.Threshold*100))
	}

	now := canonical.Truncate(requesttime.Now(ctx))
	credential := models.Credential{
		ID:         models.NewCredentialID(),
		SubjectDID: subject,
		IssuerDID:  s.issuerDID,
		Claims: models.Claims{
			AttendanceRatio:  attmodels.Ratio(attended, s.policy.RequiredSessions),
			SessionsAttended: attended,
			SessionsRequired: s.policy.RequiredSessions,
			IssuedAt:         now,
		},
		Status: models.StatusValid,
	}
	if err := s.sign(&credential, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign credential")
	}

	if err := s.store.Insert(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			s.metrics.IncIssuanceRejected(string(dErrors.CodeAlreadyIssued))
			return nil, dErrors.New(dErrors.CodeAlreadyIssued, "subject already holds a valid credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	s.metrics.IncCredentialsIssued()
	s.auditor.Log(ctx, audit.Event{
		Timestamp: now,
		Action:    string(audit.EventCredentialIssued),
		Subject:   subject.String(),
		Resource:  credential.ID.String(),
		Actor:     requestcontext.Actor(ctx),
		Decision:  "issued",
	})
	return &credential, nil
}

// sign fills in the proof metadata first so the signature covers it.
func (s *Service) sign(c *models.Credential, created time.Time) error {
	c.Proof = models.Proof{
		Type:               models.ProofType,
		Created:            created,
		VerificationMethod: s.signer.KeyID(),
		ProofPurpose:       models.ProofPurpose,
	}
	payload, err := canonical.Credential(*c)
	if err != nil {
		return err
	}
	sig, err := s.signer.Sign(payload)
	if err != nil {
		return err
	}
	c.Proof.Signature = sig
	return nil
}

// Revoke moves a valid credential to revoked and appends the revocation
// entry. Revocations are permanent.
func (s *Service) Revoke(ctx context.Context, id models.CredentialID, reason string) error {
	now := canonical.Truncate(requesttime.Now(ctx))
	if err := s.store.Revoke(ctx, id, now, reason); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		case errors.Is(err, sentinel.ErrInvalidState), errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeAlreadyRevoked, "credential is already revoked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke credential")
	}
	if s.cache != nil {
		s.cache.Add(ctx, id)
	}

	s.metrics.IncCredentialsRevoked()
	s.auditor.Log(ctx, audit.Event{
		Timestamp: now,
		Action:    string(audit.EventCredentialRevoked),
		Resource:  id.String(),
		Actor:     requestcontext.Actor(ctx),
		Decision:  "revoked",
		Reason:    reason,
	})
	return nil
}

// Get returns a stored credential.
func (s *Service) Get(ctx context.Context, id models.CredentialID) (*models.Credential, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	return c, nil
}

// ListBySubject returns every credential issued to subject, oldest first.
func (s *Service) ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Credential, error) {
	list, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return list, nil
}

// Revocations returns the revocation log, oldest first.
func (s *Service) Revocations(ctx context.Context) ([]models.Revocation, error) {
	list, err := s.store.ListRevocations(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list revocations")
	}
	return list, nil
}

// Eligibility reports the subject's standing against the policy.
func (s *Service) Eligibility(ctx context.Context, subject idmodels.DID) (models.Eligibility, error) {
	attended, err := s.ledger.Count(ctx, subject)
	if err != nil {
		return models.Eligibility{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attendance")
	}
	list, err := s.ListBySubject(ctx, subject)
	if err != nil {
		return models.Eligibility{}, err
	}

	minimum := models.MinimumSessions(s.policy.Threshold, s.policy.RequiredSessions)
	e := models.Eligibility{
		SubjectDID:       subject,
		Eligible:         attended >= minimum,
		AttendanceRatio:  attmodels.Ratio(attended, s.policy.RequiredSessions),
		Threshold:        s.policy.Threshold,
		SessionsAttended: attended,
		SessionsRequired: s.policy.RequiredSessions,
		SessionsNeeded:   max(0, minimum-attended),
	}
	for _, c := range list {
		if c.Status == models.StatusValid {
			e.HasValid = true
			e.ValidCredential = c.ID
		}
	}
	return e, nil
}

// Stats aggregates every issued credential.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	var stats models.Stats
	var ratioSum float64
	for _, c := range list {
		stats.Total++
		ratioSum += c.Claims.AttendanceRatio
		switch c.Status {
		case models.StatusValid:
			stats.Valid++
		case models.StatusRevoked:
			stats.Revoked++
		}
	}
	if stats.Total > 0 {
		stats.AverageAttendanceRatio = ratioSum / float64(stats.Total)
	}
	return stats, nil
}

// CountSubjectsWithValid counts subjects currently holding a valid credential.
func (s *Service) CountSubjectsWithValid(ctx context.Context) (int, error) {
	list, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	subjects := make(map[idmodels.DID]struct{})
	for _, c := range list {
		if c.Status == models.StatusValid {
			subjects[c.SubjectDID] = struct{}{}
		}
	}
	return len(subjects), nil
}
