package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/credential/models"
	"presence/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

var columns = []string{
	"id", "subject_did", "issuer_did", "attendance_ratio", "sessions_attended",
	"sessions_required", "issued_at", "proof_type", "proof_created", "verification_method",
	"proof_purpose", "signature", "status", "revoked_at",
}

var issued = time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)

func TestPostgresInsert(t *testing.T) {
	c := credential("did:key:z6MkA")

	t.Run("inserts every column", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO credentials").
			WithArgs(c.ID.String(), "did:key:z6MkA", "did:key:z6MkIssuer", 0.8, 8, 10,
				c.Claims.IssuedAt, models.ProofType, c.Proof.Created, "did:key:z6MkIssuer#key-1",
				models.ProofPurpose, c.Proof.Signature, "valid", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Insert(context.Background(), c))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("valid-per-subject index maps to already exists", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO credentials").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "credentials_one_valid_per_subject"})

		assert.ErrorIs(t, store.Insert(context.Background(), c), sentinel.ErrAlreadyExists)
	})

	t.Run("primary key violation maps to conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO credentials").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "credentials_pkey"})

		assert.ErrorIs(t, store.Insert(context.Background(), c), sentinel.ErrConflict)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO credentials").WillReturnError(errors.New("boom"))

		err := store.Insert(context.Background(), c)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert credential")
	})
}

func TestPostgresFindByID(t *testing.T) {
	t.Run("scans a revoked credential", func(t *testing.T) {
		store, mock := newMockStore(t)
		revokedAt := issued.Add(time.Hour)
		mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
			WithArgs("vc_1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"vc_1", "did:key:z6MkA", "did:key:z6MkIssuer", 0.8, 8, 10, issued,
				models.ProofType, issued, "did:key:z6MkIssuer#key-1", models.ProofPurpose,
				[]byte{1, 2, 3}, "revoked", revokedAt))

		got, err := store.FindByID(context.Background(), "vc_1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRevoked, got.Status)
		assert.Equal(t, 8, got.Claims.SessionsAttended)
		assert.Equal(t, []byte{1, 2, 3}, got.Proof.Signature)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, revokedAt.Equal(*got.RevokedAt))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
			WillReturnError(sql.ErrNoRows)

		_, err := store.FindByID(context.Background(), "vc_missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresRevoke(t *testing.T) {
	at := issued.Add(2 * time.Hour)

	t.Run("flips status and appends the entry", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE credentials SET status = 'revoked'").
			WithArgs("vc_1", at).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO revocations").
			WithArgs("vc_1", at, "lost card").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.Revoke(context.Background(), "vc_1", at, "lost card"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already revoked maps to invalid state", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE credentials").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM credentials").
			WithArgs("vc_1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("revoked"))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.Revoke(context.Background(), "vc_1", at, ""), sentinel.ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE credentials").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM credentials").
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		assert.ErrorIs(t, store.Revoke(context.Background(), "vc_x", at, ""), sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRevocations(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("vc_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT credential_id, revoked_at, reason FROM revocations").
		WillReturnRows(sqlmock.NewRows([]string{"credential_id", "revoked_at", "reason"}).
			AddRow("vc_1", issued, "lost card"))

	revoked, err := store.IsRevoked(context.Background(), "vc_1")
	require.NoError(t, err)
	assert.True(t, revoked)

	list, err := store.ListRevocations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.CredentialID("vc_1"), list[0].CredentialID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
