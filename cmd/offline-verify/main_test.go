package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attservice "presence/internal/attendance/service"
	attstore "presence/internal/attendance/store"
	"presence/internal/credential/canonical"
	"presence/internal/credential/issuer"
	"presence/internal/credential/models"
	"presence/internal/credential/store"
	"presence/internal/credential/verifier"
	"presence/internal/identity/did"
	idmodels "presence/internal/identity/models"
	idservice "presence/internal/identity/service"
	idstore "presence/internal/identity/store"
	requesttime "presence/pkg/platform/middleware/requesttime"
	fixtures "presence/pkg/testutil"
)

type fixture struct {
	dir          string
	snapshotPath string
	issuerDID    idmodels.DID
	valid        []byte
	revoked      []byte
	peerDID      idmodels.DID
	peerSigned   []byte
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := requesttime.WithTime(context.Background(), fixtures.Day(30))
	policy := issuer.Policy{RequiredSessions: 10, Threshold: 0.8}

	registry := idservice.New(idstore.NewInMemoryStore(), idservice.WithKeyGenerator(fixtures.SequentialKeys(1)))
	ledger := attservice.New(attstore.NewInMemoryStore(), registry,
		attservice.Policy{RequiredSessions: policy.RequiredSessions, Threshold: policy.Threshold})

	pub, _ := fixtures.KeyPair(200)
	issuerDID, err := did.FromPublicKey(pub)
	require.NoError(t, err)
	_, err = registry.RegisterIssuer(ctx, pub, "Registrar")
	require.NoError(t, err)
	signer := fixtures.Signer(200, idmodels.MethodID(issuerDID, 1))

	credentials := store.NewInMemoryStore()
	svc, err := issuer.New(credentials, ledger, signer, policy)
	require.NoError(t, err)

	created, err := registry.CreateIdentity(ctx, "A1B2C3D4", idmodels.Attributes{Name: "Ada"})
	require.NoError(t, err)
	subject := created.Record.DID
	for day := range 8 {
		_, err := ledger.RecordEvent(ctx, subject, fixtures.Day(day))
		require.NoError(t, err)
	}

	first, err := svc.Issue(ctx, subject)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, first.ID, "reissue"))
	second, err := svc.Issue(ctx, subject)
	require.NoError(t, err)

	snap, err := verifier.NewSnapshotter(registry, svc, signer).Build(ctx)
	require.NoError(t, err)
	raw, err := verifier.EncodeSnapshot(*snap)
	require.NoError(t, err)

	dir := t.TempDir()
	f := fixture{dir: dir, snapshotPath: filepath.Join(dir, "snapshot.cbor"), issuerDID: issuerDID}
	require.NoError(t, os.WriteFile(f.snapshotPath, raw, 0o600))

	first.Status = models.StatusValid
	f.revoked, err = json.Marshal(models.ToDocument(*first))
	require.NoError(t, err)
	f.valid, err = json.Marshal(models.ToDocument(*second))
	require.NoError(t, err)

	peerPub, _ := fixtures.KeyPair(150)
	f.peerDID, err = did.FromPublicKey(peerPub)
	require.NoError(t, err)
	peerSigner := fixtures.Signer(150, idmodels.MethodID(f.peerDID, 1))
	issuedAt := canonical.Truncate(fixtures.Day(30))
	peer := models.Credential{
		ID:         models.NewCredentialID(),
		SubjectDID: subject,
		IssuerDID:  f.peerDID,
		Claims:     models.Claims{AttendanceRatio: 0.9, SessionsAttended: 9, SessionsRequired: 10, IssuedAt: issuedAt},
		Proof: models.Proof{
			Type:               models.ProofType,
			Created:            issuedAt,
			VerificationMethod: peerSigner.KeyID(),
			ProofPurpose:       models.ProofPurpose,
		},
		Status: models.StatusValid,
	}
	payload, err := canonical.Credential(peer)
	require.NoError(t, err)
	peer.Proof.Signature, err = peerSigner.Sign(payload)
	require.NoError(t, err)
	f.peerSigned, err = json.Marshal(models.ToDocument(peer))
	require.NoError(t, err)
	return f
}

func (f fixture) write(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path
}

func TestRun(t *testing.T) {
	f := newFixture(t)

	t.Run("valid credential from file", func(t *testing.T) {
		var out bytes.Buffer
		code, err := run(f.snapshotPath, f.issuerDID, nil, f.write(t, "valid.json", f.valid), strings.NewReader(""), &out)
		require.NoError(t, err)
		assert.Equal(t, 0, code)

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, true, result["valid"])
	})

	t.Run("revoked credential from stdin", func(t *testing.T) {
		var out bytes.Buffer
		code, err := run(f.snapshotPath, f.issuerDID, nil, "", bytes.NewReader(f.revoked), &out)
		require.NoError(t, err)
		assert.Equal(t, 1, code)
		assert.Contains(t, out.String(), `"reason": "revoked"`)
	})

	t.Run("peer issuer only when listed", func(t *testing.T) {
		code, err := run(f.snapshotPath, f.issuerDID, nil, "", bytes.NewReader(f.peerSigned), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 1, code)

		code, err = run(f.snapshotPath, f.issuerDID, []idmodels.DID{f.peerDID}, "", bytes.NewReader(f.peerSigned), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("snapshot from another issuer", func(t *testing.T) {
		pub, _ := fixtures.KeyPair(99)
		stranger, err := did.FromPublicKey(pub)
		require.NoError(t, err)

		code, err := run(f.snapshotPath, stranger, nil, "", bytes.NewReader(f.valid), &bytes.Buffer{})
		assert.ErrorIs(t, err, verifier.ErrSnapshotUntrusted)
		assert.Equal(t, 2, code)
	})

	t.Run("unreadable snapshot", func(t *testing.T) {
		code, err := run(f.write(t, "garbage.cbor", []byte("not cbor")), f.issuerDID, nil, "", bytes.NewReader(f.valid), &bytes.Buffer{})
		assert.Error(t, err)
		assert.Equal(t, 2, code)

		code, err = run(filepath.Join(f.dir, "absent.cbor"), f.issuerDID, nil, "", bytes.NewReader(f.valid), &bytes.Buffer{})
		assert.Error(t, err)
		assert.Equal(t, 2, code)
	})
}
