package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuspass/access-server-go/internal/model"
)

type IdentityRepository interface {
	FindByID(ctx context.Context, id string) (*model.Identity, error)
	// FindByIDForUpdate locks the identity row for the duration of the
	// enclosing transaction, serializing concurrent transitions for the
	// same identity.
	FindByIDForUpdate(ctx context.Context, id string) (*model.Identity, error)
	SetPresence(ctx context.Context, id string, presence model.PresenceState) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) IdentityRepository
}

// identityDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type identityDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type identityRepo struct {
	db identityDB
}

func NewIdentityRepository(db *sqlx.DB) IdentityRepository {
	return &identityRepo{db: db}
}

func (r *identityRepo) WithTx(tx *sqlx.Tx) IdentityRepository {
	return &identityRepo{db: tx}
}

func (r *identityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE id = $1
	`, id)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	err := r.db.GetContext(ctx, &identity, `
		SELECT * FROM identities WHERE id = $1 FOR UPDATE
	`, id)
	return HandleNotFound(&identity, err)
}

func (r *identityRepo) SetPresence(ctx context.Context, id string, presence model.PresenceState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE identities SET
			presence = $2,
			updated_at = $3
		WHERE id = $1
	`, id, presence, time.Now())
	return err
}
