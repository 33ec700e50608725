package verifier

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"presence/internal/credential/canonical"
	"presence/internal/credential/models"
	"presence/internal/identity/did"
	idmodels "presence/internal/identity/models"
	"presence/internal/keys"
	requesttime "presence/pkg/platform/middleware/requesttime"
)

var (
	ErrNotInSnapshot        = errors.New("not in snapshot")
	ErrSnapshotUntrusted    = errors.New("snapshot is not from the trusted issuer")
	ErrSnapshotSignature    = errors.New("snapshot signature does not verify")
	ErrSnapshotIssuerBroken = errors.New("snapshot issuer key history does not match its did")
)

// SnapshotKey is one key version of one registered DID.
type SnapshotKey struct {
	DID       idmodels.DID `cbor:"did"`
	Version   int          `cbor:"version"`
	PublicKey []byte       `cbor:"publicKey"`
}

// Snapshot is everything an offline verifier needs: every registry key, the
// revoked credential ids, and the issuer's signature over both.
type Snapshot struct {
	Issuer             idmodels.DID
	VerificationMethod string
	Keys               []SnapshotKey
	Revoked            []models.CredentialID
	CreatedAt          time.Time
	Signature          []byte
}

type snapshotPayload struct {
	Issuer             string        `cbor:"issuer"`
	VerificationMethod string        `cbor:"verificationMethod"`
	Keys               []SnapshotKey `cbor:"keys"`
	Revoked            []string      `cbor:"revoked"`
	CreatedAt          int64         `cbor:"createdAt"`
	Signature          []byte        `cbor:"signature,omitempty"`
}

func (s Snapshot) payload(withSignature bool) snapshotPayload {
	p := snapshotPayload{
		Issuer:             s.Issuer.String(),
		VerificationMethod: s.VerificationMethod,
		Keys:               s.Keys,
		Revoked:            make([]string, len(s.Revoked)),
		CreatedAt:          s.CreatedAt.UnixMilli(),
	}
	for i, id := range s.Revoked {
		p.Revoked[i] = id.String()
	}
	if withSignature {
		p.Signature = s.Signature
	}
	return p
}

// SigningBytes is the canonical encoding covered by the snapshot signature.
func (s Snapshot) SigningBytes() ([]byte, error) {
	return canonical.Marshal(s.payload(false))
}

// EncodeSnapshot serializes a signed snapshot for transport.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return canonical.Marshal(s.payload(true))
}

func DecodeSnapshot(raw []byte) (Snapshot, error) {
	var p snapshotPayload
	if err := cbor.Unmarshal(raw, &p); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	s := Snapshot{
		Issuer:             idmodels.DID(p.Issuer),
		VerificationMethod: p.VerificationMethod,
		Keys:               p.Keys,
		Revoked:            make([]models.CredentialID, len(p.Revoked)),
		CreatedAt:          time.UnixMilli(p.CreatedAt).UTC(),
		Signature:          p.Signature,
	}
	for i, id := range p.Revoked {
		s.Revoked[i] = models.CredentialID(id)
	}
	return s, nil
}

type RecordSource interface {
	Records(ctx context.Context) ([]idmodels.Record, error)
}

type RevocationSource interface {
	Revocations(ctx context.Context) ([]models.Revocation, error)
}

// Snapshotter assembles and signs snapshots with the issuer key.
type Snapshotter struct {
	records     RecordSource
	revocations RevocationSource
	signer      keys.Signer
}

func NewSnapshotter(records RecordSource, revocations RevocationSource, signer keys.Signer) *Snapshotter {
	return &Snapshotter{records: records, revocations: revocations, signer: signer}
}

func (s *Snapshotter) Build(ctx context.Context) (*Snapshot, error) {
	var (
		records     []idmodels.Record
		revocations []models.Revocation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records.Records(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		revocations, err = s.revocations.Revocations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	issuerDID, _, err := idmodels.ParseMethodID(s.signer.KeyID())
	if err != nil {
		return nil, fmt.Errorf("snapshot signer key id: %w", err)
	}
	snap := Snapshot{
		Issuer:             issuerDID,
		VerificationMethod: s.signer.KeyID(),
		CreatedAt:          canonical.Truncate(requesttime.Now(ctx)),
	}
	for _, rec := range records {
		for _, k := range rec.Keys {
			snap.Keys = append(snap.Keys, SnapshotKey{DID: rec.DID, Version: k.Version, PublicKey: k.PublicKey})
		}
	}
	slices.SortFunc(snap.Keys, func(a, b SnapshotKey) int {
		if c := strings.Compare(a.DID.String(), b.DID.String()); c != 0 {
			return c
		}
		return a.Version - b.Version
	})
	for _, r := range revocations {
		snap.Revoked = append(snap.Revoked, r.CredentialID)
	}
	slices.Sort(snap.Revoked)

	msg, err := snap.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if snap.Signature, err = s.signer.Sign(msg); err != nil {
		return nil, fmt.Errorf("sign snapshot: %w", err)
	}
	return &snap, nil
}

// Offline serves the verifier ports from a snapshot.
type Offline struct {
	records   map[idmodels.DID]idmodels.Record
	revoked   map[models.CredentialID]struct{}
	createdAt time.Time
}

// OpenSnapshot checks that snap was produced by trusted and indexes it.
// Trust is anchored on the issuer DID: its first key must derive the DID,
// and the signing key must be in the issuer's own history.
func OpenSnapshot(snap Snapshot, trusted idmodels.DID) (*Offline, error) {
	if snap.Issuer != trusted {
		return nil, ErrSnapshotUntrusted
	}
	o := &Offline{
		records:   make(map[idmodels.DID]idmodels.Record),
		revoked:   make(map[models.CredentialID]struct{}, len(snap.Revoked)),
		createdAt: snap.CreatedAt,
	}
	for _, k := range snap.Keys {
		rec := o.records[k.DID]
		rec.DID = k.DID
		rec.ControllerDID = k.DID
		rec.Keys = append(rec.Keys, idmodels.KeyVersion{Version: k.Version, PublicKey: ed25519.PublicKey(k.PublicKey)})
		o.records[k.DID] = rec
	}
	for d, rec := range o.records {
		for i, k := range rec.Keys {
			if k.Version != i+1 {
				return nil, fmt.Errorf("snapshot key history of %s is not contiguous", d)
			}
		}
	}
	for _, id := range snap.Revoked {
		o.revoked[id] = struct{}{}
	}

	issuer, ok := o.records[trusted]
	if !ok {
		return nil, ErrSnapshotIssuerBroken
	}
	derived, err := did.FromPublicKey(issuer.Keys[0].PublicKey)
	if err != nil || derived != trusted {
		return nil, ErrSnapshotIssuerBroken
	}
	method, _, err := idmodels.ParseMethodID(snap.VerificationMethod)
	if err != nil || method != trusted {
		return nil, ErrSnapshotUntrusted
	}
	pub, err := o.ResolveKey(context.Background(), snap.VerificationMethod)
	if err != nil {
		return nil, ErrSnapshotSignature
	}
	msg, err := snap.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if !keys.Verify(pub, msg, snap.Signature) {
		return nil, ErrSnapshotSignature
	}
	return o, nil
}

// NewOffline returns a verifier that needs nothing but the snapshot.
func NewOffline(snap Snapshot, trusted idmodels.DID, opts ...Option) (*Verifier, error) {
	o, err := OpenSnapshot(snap, trusted)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithTrustedIssuers(trusted)}, opts...)
	return New(o, o, o, opts...), nil
}

func (o *Offline) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Offline) ResolveKey(_ context.Context, method string) (ed25519.PublicKey, error) {
	d, version, err := idmodels.ParseMethodID(method)
	if err != nil {
		return nil, ErrNotInSnapshot
	}
	rec, ok := o.records[d]
	if !ok {
		return nil, ErrNotInSnapshot
	}
	if version == 0 {
		return rec.PublicKey(), nil
	}
	k, ok := rec.Key(version)
	if !ok {
		return nil, ErrNotInSnapshot
	}
	return k.PublicKey, nil
}

func (o *Offline) Resolve(_ context.Context, d idmodels.DID) (idmodels.Record, error) {
	rec, ok := o.records[d]
	if !ok {
		return idmodels.Record{}, ErrNotInSnapshot
	}
	return rec, nil
}

func (o *Offline) IsRevoked(_ context.Context, id models.CredentialID) (bool, error) {
	_, ok := o.revoked[id]
	return ok, nil
}

