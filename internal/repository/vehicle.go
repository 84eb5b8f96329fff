package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuspass/access-server-go/internal/model"
)

type VehicleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	// FindOwned resolves a vehicle only when it belongs to the given owner.
	FindOwned(ctx context.Context, id string, ownerID string) (*model.Vehicle, error)
	SetPresence(ctx context.Context, id string, presence model.PresenceState) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) VehicleRepository
}

type vehicleDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type vehicleRepo struct {
	db vehicleDB
}

func NewVehicleRepository(db *sqlx.DB) VehicleRepository {
	return &vehicleRepo{db: db}
}

func (r *vehicleRepo) WithTx(tx *sqlx.Tx) VehicleRepository {
	return &vehicleRepo{db: tx}
}

func (r *vehicleRepo) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.GetContext(ctx, &vehicle, `
		SELECT * FROM vehicles WHERE id = $1
	`, id)
	return HandleNotFound(&vehicle, err)
}

func (r *vehicleRepo) FindOwned(ctx context.Context, id string, ownerID string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.GetContext(ctx, &vehicle, `
		SELECT * FROM vehicles WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	return HandleNotFound(&vehicle, err)
}

func (r *vehicleRepo) SetPresence(ctx context.Context, id string, presence model.PresenceState) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vehicles SET
			presence = $2,
			updated_at = $3
		WHERE id = $1
	`, id, presence, time.Now())
	return err
}
