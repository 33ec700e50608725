package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"presence/internal/credential/models"
	idmodels "presence/internal/identity/models"
	"presence/pkg/platform/sentinel"
)

// PostgresStore keeps credentials in the credentials table. The partial
// unique index credentials_one_valid_per_subject makes Insert atomic per
// subject across processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = "id, subject_did, issuer_did, attendance_ratio, sessions_attended, " +
	"sessions_required, issued_at, proof_type, proof_created, verification_method, " +
	"proof_purpose, signature, status, revoked_at"

func (s *PostgresStore) Insert(ctx context.Context, c models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		c.ID.String(),
		c.SubjectDID.String(),
		c.IssuerDID.String(),
		c.Claims.AttendanceRatio,
		c.Claims.SessionsAttended,
		c.Claims.SessionsRequired,
		c.Claims.IssuedAt,
		c.Proof.Type,
		c.Proof.Created,
		c.Proof.VerificationMethod,
		c.Proof.ProofPurpose,
		c.Proof.Signature,
		string(c.Status),
		c.RevokedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "credentials_one_valid_per_subject" {
				return sentinel.ErrAlreadyExists
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.CredentialID) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id.String())
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject idmodels.DID) ([]models.Credential, error) {
	return s.list(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE subject_did = $1 ORDER BY issued_at, id`,
		subject.String())
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Credential, error) {
	return s.list(ctx, `SELECT `+credentialColumns+` FROM credentials ORDER BY issued_at, id`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]models.Credential, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

// Revoke flips status and appends the revocation entry in one transaction.
func (s *PostgresStore) Revoke(ctx context.Context, id models.CredentialID, revokedAt time.Time, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revoke: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE credentials SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status = 'valid'
	`, id.String(), revokedAt)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM credentials WHERE id = $1`, id.String()).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read credential status: %w", err)
		}
		return sentinel.ErrInvalidState
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revocations (credential_id, revoked_at, reason) VALUES ($1, $2, $3)
	`, id.String(), revokedAt, reason); err != nil {
		return fmt.Errorf("append revocation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revoke: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsRevoked(ctx context.Context, id models.CredentialID) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revocations WHERE credential_id = $1)`, id.String()).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) ListRevocations(ctx context.Context) ([]models.Revocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT credential_id, revoked_at, reason FROM revocations ORDER BY revoked_at, credential_id`)
	if err != nil {
		return nil, fmt.Errorf("list revocations: %w", err)
	}
	defer rows.Close()

	var out []models.Revocation
	for rows.Next() {
		var r models.Revocation
		var id string
		if err := rows.Scan(&id, &r.RevokedAt, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan revocation: %w", err)
		}
		r.CredentialID = models.CredentialID(id)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revocations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		c                          models.Credential
		id, subject, issuer, state string
		revokedAt                  sql.NullTime
	)
	if err := row.Scan(
		&id, &subject, &issuer,
		&c.Claims.AttendanceRatio, &c.Claims.SessionsAttended, &c.Claims.SessionsRequired, &c.Claims.IssuedAt,
		&c.Proof.Type, &c.Proof.Created, &c.Proof.VerificationMethod, &c.Proof.ProofPurpose, &c.Proof.Signature,
		&state, &revokedAt,
	); err != nil {
		return nil, err
	}
	c.ID = models.CredentialID(id)
	c.SubjectDID = idmodels.DID(subject)
	c.IssuerDID = idmodels.DID(issuer)
	c.Status = models.Status(state)
	if revokedAt.Valid {
		t := revokedAt.Time
		c.RevokedAt = &t
	}
	c.Claims.IssuedAt = c.Claims.IssuedAt.UTC()
	c.Proof.Created = c.Proof.Created.UTC()
	return &c, nil
}
