package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campuspass/access-server-go/internal/model"
)

type OperatorRepository interface {
	FindByID(ctx context.Context, id string) (*model.Operator, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Operator, error)
}

type operatorRepo struct {
	db *sqlx.DB
}

func NewOperatorRepository(db *sqlx.DB) OperatorRepository {
	return &operatorRepo{db: db}
}

func (r *operatorRepo) FindByID(ctx context.Context, id string) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.GetContext(ctx, &operator, `
		SELECT * FROM operators WHERE id = $1
	`, id)
	return HandleNotFound(&operator, err)
}

func (r *operatorRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Operator, error) {
	var operator model.Operator
	err := r.db.GetContext(ctx, &operator, `
		SELECT * FROM operators
		WHERE token_hash = $1
		AND disabled_at IS NULL
	`, tokenHash)
	return HandleNotFound(&operator, err)
}
