package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuspass/access-server-go/internal/model"
)

type CredentialRepository interface {
	// FindLatestByIdentity returns the most-recently-expiring credential
	// for the identity regardless of validity, or nil when none exists.
	FindLatestByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error)
	// FindActiveByIdentity returns the most-recently-expiring credential
	// with expires_at still in the future, or nil.
	FindActiveByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error)
	Create(ctx context.Context, params model.CreateCredentialParams) (*model.GateCredential, error)
	// Refresh mutates an existing credential in place with a fresh token
	// and expiry.
	Refresh(ctx context.Context, id string, token string, expiresAt time.Time) (*model.GateCredential, error)
	// ExpireNow moves expires_at into the past. A no-op when the
	// credential is already expired.
	ExpireNow(ctx context.Context, id string, now time.Time) error
	// ListExpiredHolders returns identities whose newest credential has
	// expired while a session is still open for them.
	ListExpiredHolders(ctx context.Context, now time.Time) ([]string, error)
	// DeleteExpired reclaims credential rows expired for longer than the
	// retention window.
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) CredentialRepository
}

type credentialDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type credentialRepo struct {
	db credentialDB
}

func NewCredentialRepository(db *sqlx.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) WithTx(tx *sqlx.Tx) CredentialRepository {
	return &credentialRepo{db: tx}
}

func (r *credentialRepo) FindLatestByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error) {
	var cred model.GateCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM gate_credentials
		WHERE identity_id = $1
		ORDER BY expires_at DESC
		LIMIT 1
	`, identityID)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) FindActiveByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error) {
	var cred model.GateCredential
	err := r.db.GetContext(ctx, &cred, `
		SELECT * FROM gate_credentials
		WHERE identity_id = $1
		AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1
	`, identityID)
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) Create(ctx context.Context, params model.CreateCredentialParams) (*model.GateCredential, error) {
	var cred model.GateCredential
	err := r.db.GetContext(ctx, &cred, `
		INSERT INTO gate_credentials (identity_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.IdentityID, params.Token, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) Refresh(ctx context.Context, id string, token string, expiresAt time.Time) (*model.GateCredential, error) {
	var cred model.GateCredential
	err := r.db.GetContext(ctx, &cred, `
		UPDATE gate_credentials SET
			token = $2,
			expires_at = $3,
			updated_at = $4
		WHERE id = $1
		RETURNING *
	`, id, token, expiresAt, time.Now())
	return HandleNotFound(&cred, err)
}

func (r *credentialRepo) ExpireNow(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE gate_credentials SET
			expires_at = $2,
			updated_at = $2
		WHERE id = $1 AND expires_at > $2
	`, id, now)
	return err
}

func (r *credentialRepo) ListExpiredHolders(ctx context.Context, now time.Time) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT s.identity_id
		FROM access_sessions s
		WHERE s.exited_at IS NULL
		AND EXISTS (
			SELECT 1 FROM gate_credentials c
			WHERE c.identity_id = s.identity_id
		)
		AND NOT EXISTS (
			SELECT 1 FROM gate_credentials c
			WHERE c.identity_id = s.identity_id
			AND c.expires_at > $1
		)
	`, now)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *credentialRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM gate_credentials
		WHERE expires_at < $1
	`, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
