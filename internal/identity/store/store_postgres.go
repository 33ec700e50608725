package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	externalIDConstraint = "identities_external_id_key"
)

// PostgresStore persists identities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record models.Record, subject models.Subject) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var externalID sql.NullString
	if subject.HasCard() {
		externalID = sql.NullString{String: subject.CardUID.String(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (did, controller_did, external_id, name, email, department, enrollment_date, card_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		record.DID.String(),
		record.ControllerDID.String(),
		externalID,
		subject.Attributes.Name,
		subject.Attributes.Email,
		subject.Attributes.Department,
		subject.Attributes.EnrollmentDate,
		string(subject.CardStatus),
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == externalIDConstraint {
				return sentinel.ErrAlreadyExists
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	for _, key := range record.Keys {
		if err = insertKey(ctx, tx, record.DID, key); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRecord(ctx context.Context, did models.DID) (models.Record, error) {
	var controller string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT controller_did, created_at FROM identities WHERE did = $1
	`, did.String()).Scan(&controller, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Record{}, sentinel.ErrNotFound
		}
		return models.Record{}, fmt.Errorf("find identity: %w", err)
	}

	keys, err := s.keysFor(ctx, did)
	if err != nil {
		return models.Record{}, err
	}
	return models.Record{
		DID:           did,
		ControllerDID: models.DID(controller),
		Keys:          keys,
		CreatedAt:     createdAt,
	}, nil
}

const subjectColumns = `did, external_id, card_status, name, email, department, enrollment_date, created_at`

func (s *PostgresStore) FindSubject(ctx context.Context, did models.DID) (models.Subject, error) {
	subj, err := scanSubject(s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM identities WHERE did = $1`, did.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Subject{}, sentinel.ErrNotFound
		}
		return models.Subject{}, fmt.Errorf("find subject: %w", err)
	}
	return subj, nil
}

func (s *PostgresStore) FindSubjectByCard(ctx context.Context, uid models.CardUID) (models.Subject, error) {
	subj, err := scanSubject(s.db.QueryRowContext(ctx,
		`SELECT `+subjectColumns+` FROM identities WHERE external_id = $1`, uid.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Subject{}, sentinel.ErrNotFound
		}
		return models.Subject{}, fmt.Errorf("find subject by card: %w", err)
	}
	return subj, nil
}

func (s *PostgresStore) SetCardStatus(ctx context.Context, uid models.CardUID, status models.CardStatus) (models.Subject, error) {
	subj, err := scanSubject(s.db.QueryRowContext(ctx,
		`UPDATE identities SET card_status = $2 WHERE external_id = $1 RETURNING `+subjectColumns,
		uid.String(), string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Subject{}, sentinel.ErrNotFound
		}
		return models.Subject{}, fmt.Errorf("set card status: %w", err)
	}
	return subj, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subjectColumns+` FROM identities WHERE external_id IS NOT NULL ORDER BY created_at, did`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.did, i.controller_did, i.created_at, k.version, k.public_key, k.created_at
		FROM identities i
		JOIN identity_keys k ON k.did = i.did
		ORDER BY i.did, k.version
	`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var did, controller string
		var createdAt time.Time
		var key models.KeyVersion
		var pub []byte
		if err := rows.Scan(&did, &controller, &createdAt, &key.Version, &pub, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity key: %w", err)
		}
		key.PublicKey = pub
		if n := len(out); n == 0 || out[n-1].DID != models.DID(did) {
			out = append(out, models.Record{
				DID:           models.DID(did),
				ControllerDID: models.DID(controller),
				CreatedAt:     createdAt,
			})
		}
		last := &out[len(out)-1]
		last.Keys = append(last.Keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// AppendKey relies on the (did, version) primary key: a concurrent rotation
// that already wrote the same version surfaces as ErrConflict.
func (s *PostgresStore) AppendKey(ctx context.Context, did models.DID, key models.KeyVersion) error {
	return insertKey(ctx, s.db, did, key)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertKey(ctx context.Context, db execer, did models.DID, key models.KeyVersion) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO identity_keys (did, version, public_key, created_at)
		VALUES ($1, $2, $3, $4)
	`, did.String(), key.Version, []byte(key.PublicKey), key.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return sentinel.ErrConflict
			case pgForeignKeyViolation:
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert identity key: %w", err)
	}
	return nil
}

func (s *PostgresStore) keysFor(ctx context.Context, did models.DID) ([]models.KeyVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, public_key, created_at FROM identity_keys WHERE did = $1 ORDER BY version
	`, did.String())
	if err != nil {
		return nil, fmt.Errorf("list identity keys: %w", err)
	}
	defer rows.Close()

	var keys []models.KeyVersion
	for rows.Next() {
		var key models.KeyVersion
		var pub []byte
		if err := rows.Scan(&key.Version, &pub, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity key: %w", err)
		}
		key.PublicKey = pub
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity keys: %w", err)
	}
	return keys, nil
}

type subjectRow interface {
	Scan(dest ...any) error
}

func scanSubject(row subjectRow) (models.Subject, error) {
	var subj models.Subject
	var did, status string
	var externalID sql.NullString
	err := row.Scan(&did, &externalID, &status,
		&subj.Attributes.Name, &subj.Attributes.Email, &subj.Attributes.Department, &subj.Attributes.EnrollmentDate,
		&subj.CreatedAt)
	if err != nil {
		return models.Subject{}, err
	}
	subj.DID = models.DID(did)
	subj.CardUID = models.CardUID(externalID.String)
	subj.CardStatus = models.CardStatus(status)
	return subj, nil
}
