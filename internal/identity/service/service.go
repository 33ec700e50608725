package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"

	"presence/internal/identity/did"
	"presence/internal/identity/models"
	"presence/internal/identity/store"
	"presence/internal/keys"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	requesttime "presence/pkg/platform/middleware/requesttime"
	"presence/pkg/platform/sentinel"
)

// Option configures the registry service.
type Option func(*Service)

// Service is the identity registry: it creates DIDs, resolves them and
// their key history, and binds subjects to NFC cards.
type Service struct {
	store   store.Store
	keygen  keys.Generator
	metrics *metrics.Metrics
	auditor *audit.Logger
	logger  *slog.Logger
}

func New(store store.Store, opts ...Option) *Service {
	svc := &Service{
		store:  store,
		keygen: keys.NewGenerator(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
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

// WithKeyGenerator replaces the crypto/rand key generator.
func WithKeyGenerator(gen keys.Generator) Option {
	return func(s *Service) {
		s.keygen = gen
	}
}

// CreateIdentity generates a keypair, derives the DID from the public key
// and binds it to the card. The private key is returned to the caller and
// dropped.
func (s *Service) CreateIdentity(ctx context.Context, uid models.CardUID, attrs models.Attributes) (*models.CreatedIdentity, error) {
	if uid == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "card uid is required")
	}
	pub, priv, err := s.keygen()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate key")
	}
	subjectDID, err := did.FromPublicKey(pub)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive did")
	}

	now := requesttime.Now(ctx).UTC()
	record := models.Record{
		DID:           subjectDID,
		ControllerDID: subjectDID,
		Keys:          []models.KeyVersion{{Version: 1, PublicKey: pub, CreatedAt: now}},
		CreatedAt:     now,
	}
	subject := models.Subject{
		DID:        subjectDID,
		CardUID:    uid,
		CardStatus: models.CardActive,
		Attributes: attrs,
		CreatedAt:  now,
	}

	if err := s.store.Create(ctx, record, subject); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyExists):
			return nil, dErrors.New(dErrors.CodeDuplicateSubject, "card is already bound to a subject")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "did is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store identity")
	}

	s.metrics.IncIdentitiesCreated()
	s.auditor.Log(ctx, audit.Event{
		Timestamp: now,
		Action:    string(audit.EventIdentityCreated),
		Subject:   subjectDID.String(),
		Resource:  uid.String(),
		Decision:  "created",
	})

	return &models.CreatedIdentity{Record: record, Subject: subject, PrivateKey: priv}, nil
}

// RegisterIssuer ensures the issuer's DID is in the registry. It is
// idempotent so every process start can call it.
func (s *Service) RegisterIssuer(ctx context.Context, pub ed25519.PublicKey, name string) (models.Record, error) {
	issuerDID, err := did.FromPublicKey(pub)
	if err != nil {
		return models.Record{}, dErrors.New(dErrors.CodeValidation, "invalid issuer public key")
	}
	if rec, err := s.store.FindRecord(ctx, issuerDID); err == nil {
		return rec, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up issuer")
	}

	now := requesttime.Now(ctx).UTC()
	record := models.Record{
		DID:           issuerDID,
		ControllerDID: issuerDID,
		Keys:          []models.KeyVersion{{Version: 1, PublicKey: pub, CreatedAt: now}},
		CreatedAt:     now,
	}
	subject := models.Subject{DID: issuerDID, Attributes: models.Attributes{Name: name}, CreatedAt: now}
	err = s.store.Create(ctx, record, subject)
	if errors.Is(err, sentinel.ErrConflict) {
		// another instance registered it first
		return s.Resolve(ctx, issuerDID)
	}
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}
	s.logger.InfoContext(ctx, "issuer registered", "did", issuerDID)
	return record, nil
}

func (s *Service) Resolve(ctx context.Context, d models.DID) (models.Record, error) {
	rec, err := s.store.FindRecord(ctx, d)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Record{}, dErrors.New(dErrors.CodeNotFound, "did not found")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve did")
	}
	return rec, nil
}

// ResolveKey returns the public key named by a verification method id
// ("did#key-N"). A bare DID resolves to the current key.
func (s *Service) ResolveKey(ctx context.Context, method string) (ed25519.PublicKey, error) {
	subjectDID, version, err := models.ParseMethodID(method)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid verification method")
	}
	rec, err := s.Resolve(ctx, subjectDID)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return rec.PublicKey(), nil
	}
	key, ok := rec.Key(version)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "key version not found")
	}
	return key.PublicKey, nil
}

// RotateKey appends newKey as version N+1. Earlier versions stay resolvable.
func (s *Service) RotateKey(ctx context.Context, d models.DID, newKey ed25519.PublicKey) (models.KeyVersion, error) {
	if len(newKey) != ed25519.PublicKeySize {
		return models.KeyVersion{}, dErrors.New(dErrors.CodeValidation, "public key must be 32 bytes")
	}
	rec, err := s.Resolve(ctx, d)
	if err != nil {
		return models.KeyVersion{}, err
	}
	if rec.HasKey(newKey) {
		return models.KeyVersion{}, dErrors.New(dErrors.CodeConflict, "key is already in the history")
	}

	now := requesttime.Now(ctx).UTC()
	key := models.KeyVersion{Version: len(rec.Keys) + 1, PublicKey: newKey, CreatedAt: now}
	if err := s.store.AppendKey(ctx, d, key); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return models.KeyVersion{}, dErrors.New(dErrors.CodeConflict, "key was rotated concurrently")
		case errors.Is(err, sentinel.ErrNotFound):
			return models.KeyVersion{}, dErrors.New(dErrors.CodeNotFound, "did not found")
		}
		return models.KeyVersion{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append key")
	}

	s.metrics.IncKeysRotated()
	s.auditor.Log(ctx, audit.Event{
		Timestamp: now,
		Action:    string(audit.EventKeyRotated),
		Subject:   d.String(),
		Resource:  models.MethodID(d, key.Version),
		Decision:  "rotated",
	})
	return key, nil
}

func (s *Service) Subject(ctx context.Context, d models.DID) (models.Subject, error) {
	subj, err := s.store.FindSubject(ctx, d)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Subject{}, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return models.Subject{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subject")
	}
	return subj, nil
}

func (s *Service) ResolveByCard(ctx context.Context, uid models.CardUID) (models.Subject, error) {
	subj, err := s.store.FindSubjectByCard(ctx, uid)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Subject{}, dErrors.New(dErrors.CodeNotFound, "card is not registered")
		}
		return models.Subject{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve card")
	}
	return subj, nil
}

// DeactivateCard blocks the card from recording attendance. The subject's
// DID, keys and credentials are untouched.
func (s *Service) DeactivateCard(ctx context.Context, uid models.CardUID) (models.Subject, error) {
	return s.setCardStatus(ctx, uid, models.CardInactive)
}

func (s *Service) ReactivateCard(ctx context.Context, uid models.CardUID) (models.Subject, error) {
	return s.setCardStatus(ctx, uid, models.CardActive)
}

func (s *Service) setCardStatus(ctx context.Context, uid models.CardUID, status models.CardStatus) (models.Subject, error) {
	subj, err := s.store.SetCardStatus(ctx, uid, status)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Subject{}, dErrors.New(dErrors.CodeNotFound, "card is not registered")
		}
		return models.Subject{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update card status")
	}

	s.auditor.Log(ctx, audit.Event{
		Timestamp: requesttime.Now(ctx).UTC(),
		Action:    string(audit.EventCardStatusChanged),
		Subject:   subj.DID.String(),
		Resource:  uid.String(),
		Decision:  string(status),
	})
	return subj, nil
}

func (s *Service) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subjects")
	}
	return subjects, nil
}

// Records returns every DID record with its full key history.
func (s *Service) Records(ctx context.Context) ([]models.Record, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list records")
	}
	return records, nil
}
