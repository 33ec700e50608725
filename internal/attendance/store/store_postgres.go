package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"presence/internal/attendance/models"
	idmodels "presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in attendance_events. The
// attendance_one_per_day constraint makes Append put-if-absent across
// processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event models.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_events (event_id, subject_did, day_bucket, session_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		event.EventID,
		event.SubjectDID.String(),
		event.DayBucket,
		event.SessionID,
		event.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return sentinel.ErrAlreadyExists
			case "23503":
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("append attendance event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, subject_did, day_bucket, session_id, occurred_at
		FROM attendance_events
		WHERE subject_did = $1
		ORDER BY occurred_at, event_id
	`, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list attendance events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var did string
		if err := rows.Scan(&e.EventID, &did, &e.DayBucket, &e.SessionID, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		e.SubjectDID = idmodels.DID(did)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) CountBySubject(ctx context.Context, subject idmodels.DID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance_events WHERE subject_did = $1`, subject.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attendance events: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountAll(ctx context.Context) (map[idmodels.DID]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_did, COUNT(*) FROM attendance_events GROUP BY subject_did`)
	if err != nil {
		return nil, fmt.Errorf("count attendance events: %w", err)
	}
	defer rows.Close()

	out := make(map[idmodels.DID]int)
	for rows.Next() {
		var did string
		var n int
		if err := rows.Scan(&did, &n); err != nil {
			return nil, fmt.Errorf("scan attendance count: %w", err)
		}
		out[idmodels.DID(did)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance counts: %w", err)
	}
	return out, nil
}
