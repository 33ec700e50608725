package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/pkg/platform/audit/outbox"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

var created = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestAppend(t *testing.T) {
	store, mock := newMockStore(t)
	entry := &outbox.Entry{
		ID:        uuid.New(),
		Category:  "compliance",
		Subject:   "did:key:z1",
		EventType: "credential_issued",
		Payload:   []byte(`{}`),
		CreatedAt: created,
	}
	mock.ExpectExec("INSERT INTO audit_outbox").
		WithArgs(entry.ID, "compliance", "did:key:z1", "credential_issued", []byte(`{}`), created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchUnprocessed(t *testing.T) {
	t.Run("scans pending rows", func(t *testing.T) {
		store, mock := newMockStore(t)
		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM audit_outbox WHERE processed_at IS NULL").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "category", "subject", "event_type", "payload", "created_at", "processed_at",
			}).AddRow(id.String(), "operations", "did:key:z1", "credential_verified", []byte(`{"a":1}`), created, nil))

		entries, err := store.FetchUnprocessed(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, id, entries[0].ID)
		assert.Equal(t, "credential_verified", entries[0].EventType)
		assert.JSONEq(t, `{"a":1}`, string(entries[0].Payload))
		assert.True(t, entries[0].IsPending())
	})

	t.Run("caps the batch size", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM audit_outbox").
			WithArgs(maxBatch).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		entries, err := store.FetchUnprocessed(context.Background(), 5000)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("non-positive limit skips the query", func(t *testing.T) {
		store, mock := newMockStore(t)
		entries, err := store.FetchUnprocessed(context.Background(), 0)
		require.NoError(t, err)
		assert.Nil(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkProcessed(t *testing.T) {
	id := uuid.New()

	t.Run("marks a pending row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE audit_outbox SET processed_at").
			WithArgs(id, created).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, store.MarkProcessed(context.Background(), id, created))
	})

	t.Run("missing row is an error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE audit_outbox SET processed_at").
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.Error(t, store.MarkProcessed(context.Background(), id, created))
	})
}

func TestCountPending(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestDeleteProcessedBefore(t *testing.T) {
	t.Run("returns rows deleted", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM audit_outbox").
			WithArgs(created).
			WillReturnResult(sqlmock.NewResult(0, 7))

		n, err := store.DeleteProcessedBefore(context.Background(), created)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM audit_outbox").
			WillReturnError(errors.New("connection reset"))

		_, err := store.DeleteProcessedBefore(context.Background(), created)
		assert.ErrorContains(t, err, "delete processed entries")
	})
}
