// Package verifier checks presented credentials. It needs no access to the
// issuer's private key, and can run entirely from a signed Snapshot.
package verifier

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"

	"presence/internal/credential/canonical"
	"presence/internal/credential/models"
	"presence/internal/identity/did"
	idmodels "presence/internal/identity/models"
	"presence/internal/keys"
	"presence/internal/platform/metrics"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/audit"
	requesttime "presence/pkg/platform/middleware/requesttime"
)

// KeyResolver returns the public key of a verification method id.
type KeyResolver interface {
	ResolveKey(ctx context.Context, method string) (ed25519.PublicKey, error)
}

// SubjectResolver reports whether a DID is registered.
type SubjectResolver interface {
	Resolve(ctx context.Context, did idmodels.DID) (idmodels.Record, error)
}

type RevocationSet interface {
	IsRevoked(ctx context.Context, id models.CredentialID) (bool, error)
}

type Option func(*Verifier)

type Verifier struct {
	keys        KeyResolver
	subjects    SubjectResolver
	revocations RevocationSet
	trusted     map[idmodels.DID]struct{}
	metrics     *metrics.Metrics
	auditor     *audit.Logger
	logger      *slog.Logger
}

func New(keys KeyResolver, subjects SubjectResolver, revocations RevocationSet, opts ...Option) *Verifier {
	v := &Verifier{
		keys:        keys,
		subjects:    subjects,
		revocations: revocations,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WithTrustedIssuers restricts accepted issuers. Without it any issuer
// whose key resolves is accepted.
func WithTrustedIssuers(dids ...idmodels.DID) Option {
	return func(v *Verifier) {
		v.trusted = make(map[idmodels.DID]struct{}, len(dids))
		for _, d := range dids {
			v.trusted[d] = struct{}{}
		}
	}
}

// WithTrustedPeers adds issuers that are not registered locally. Their
// did:key identifier is the only key material available, so only their
// #key-1 verification method can be resolved.
func WithTrustedPeers(dids ...idmodels.DID) Option {
	return func(v *Verifier) {
		if v.trusted == nil {
			v.trusted = make(map[idmodels.DID]struct{}, len(dids))
		}
		for _, d := range dids {
			v.trusted[d] = struct{}{}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func WithAuditor(auditor *audit.Logger) Option {
	return func(v *Verifier) {
		v.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// VerifyRaw parses a presented JSON credential and verifies it. A document
// that does not parse is reported as malformed, not as an error.
func (v *Verifier) VerifyRaw(ctx context.Context, raw []byte) (models.VerifyResult, error) {
	c, err := models.ParseDocument(raw)
	if err != nil {
		return v.record(ctx, nil, models.Invalid(models.ReasonMalformedCredential, err.Error())), nil
	}
	return v.Verify(ctx, c)
}

// Verify runs the checks in order and reports the first failure: structure,
// signature, revocation, then subject binding. The returned error is set
// only when a dependency fails; the result is then meaningless.
func (v *Verifier) Verify(ctx context.Context, c models.Credential) (models.VerifyResult, error) {
	result, err := v.verify(ctx, c)
	if err != nil {
		return models.VerifyResult{}, err
	}
	return v.record(ctx, &c, result), nil
}

func (v *Verifier) verify(ctx context.Context, c models.Credential) (models.VerifyResult, error) {
	if err := c.Validate(); err != nil {
		return models.Invalid(models.ReasonMalformedCredential, err.Error()), nil
	}

	if v.trusted != nil {
		if _, ok := v.trusted[c.IssuerDID]; !ok {
			return models.Invalid(models.ReasonInvalidSignature, "issuer is not trusted"), nil
		}
	}
	pub, err := v.issuerKey(ctx, c)
	if err != nil {
		if isNotFound(err) {
			return models.Invalid(models.ReasonInvalidSignature, "verification method does not resolve"), nil
		}
		return models.VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve issuer key")
	}
	payload, err := canonical.Credential(c)
	if err != nil {
		return models.VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to canonicalize credential")
	}
	if !keys.Verify(pub, payload, c.Proof.Signature) {
		return models.Invalid(models.ReasonInvalidSignature, "signature does not match"), nil
	}

	revoked, err := v.revocations.IsRevoked(ctx, c.ID)
	if err != nil {
		return models.VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check revocation")
	}
	if revoked {
		return models.Invalid(models.ReasonRevoked, "credential has been revoked"), nil
	}

	if _, err := v.subjects.Resolve(ctx, c.SubjectDID); err != nil {
		if isNotFound(err) {
			return models.Invalid(models.ReasonUnknownSubject, "subject did does not resolve"), nil
		}
		return models.VerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve subject")
	}
	return models.Valid(), nil
}

// issuerKey resolves the proof's verification method through the key
// resolver, falling back to the key embedded in a trusted issuer's did:key
// for #key-1.
func (v *Verifier) issuerKey(ctx context.Context, c models.Credential) (ed25519.PublicKey, error) {
	pub, err := v.keys.ResolveKey(ctx, c.Proof.VerificationMethod)
	if err == nil || !isNotFound(err) {
		return pub, err
	}
	if _, ok := v.trusted[c.IssuerDID]; !ok {
		return nil, err
	}
	method, version, perr := idmodels.ParseMethodID(c.Proof.VerificationMethod)
	if perr != nil || method != c.IssuerDID || version != 1 {
		return nil, err
	}
	embedded, derr := did.PublicKey(method)
	if derr != nil {
		return nil, err
	}
	return embedded, nil
}

func (v *Verifier) record(ctx context.Context, c *models.Credential, result models.VerifyResult) models.VerifyResult {
	outcome, decision := "valid", "valid"
	if !result.Valid {
		outcome, decision = string(result.Reason), "invalid"
	}
	v.metrics.ObserveVerification(outcome)

	event := audit.Event{
		Timestamp: requesttime.Now(ctx),
		Action:    string(audit.EventCredentialVerified),
		Decision:  decision,
		Reason:    string(result.Reason),
	}
	if c != nil {
		event.Subject = c.SubjectDID.String()
		event.Resource = c.ID.String()
	}
	v.auditor.Log(ctx, event)
	return result
}

func isNotFound(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound) ||
		dErrors.HasCode(err, dErrors.CodeBadRequest) ||
		errors.Is(err, ErrNotInSnapshot)
}
