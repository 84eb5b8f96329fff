package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuspass/access-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.AccessSession, error)
	// FindOpenByIdentity returns the most recent open session for the
	// identity, or nil when none is open.
	FindOpenByIdentity(ctx context.Context, identityID string) (*model.AccessSession, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.AccessSession, error)
	// Close mutates the open session in place. Returns nil when the
	// session was already closed by a concurrent transition.
	Close(ctx context.Context, params model.CloseSessionParams) (*model.AccessSession, error)
	ListOpen(ctx context.Context) ([]model.AccessSession, error)
	// ListOpenEnteredBefore returns open sessions whose entry predates the
	// cutoff, joined with identity and operator display fields, longest
	// dwell first.
	ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]model.OpenSessionRow, error)
	// MarkAlertsPending overlays alert_status = pending on sessions that
	// still carry no status. Returns the IDs actually flipped.
	MarkAlertsPending(ctx context.Context, ids []string) ([]string, error)
	UpdateAlertStatus(ctx context.Context, id string, status model.AlertStatus, resolvedAt *time.Time) (*model.AccessSession, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.AccessSession, error) {
	var session model.AccessSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM access_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindOpenByIdentity(ctx context.Context, identityID string) (*model.AccessSession, error) {
	var session model.AccessSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM access_sessions
		WHERE identity_id = $1
		AND exited_at IS NULL
		ORDER BY entered_at DESC
		LIMIT 1
	`, identityID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.AccessSession, error) {
	var session model.AccessSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO access_sessions (identity_id, operator_id, vehicle_id, entered_at, entered_time_of_day)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.IdentityID, params.OperatorID, params.VehicleID, params.EnteredAt, params.EnteredTimeOfDay)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) Close(ctx context.Context, params model.CloseSessionParams) (*model.AccessSession, error) {
	var session model.AccessSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE access_sessions SET
			exited_at = $2,
			exited_time_of_day = $3,
			duration_label = $4,
			forced_close = $5,
			forced_close_reason = $6,
			alert_status = COALESCE($7, alert_status),
			alert_resolved_at = COALESCE($8, alert_resolved_at),
			updated_at = $2
		WHERE id = $1 AND exited_at IS NULL
		RETURNING *
	`, params.SessionID, params.ExitedAt, params.ExitedTimeOfDay, params.DurationLabel,
		params.ForcedClose, params.ForcedCloseReason, params.AlertStatus, params.AlertResolvedAt)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ListOpen(ctx context.Context) ([]model.AccessSession, error) {
	sessions := []model.AccessSession{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM access_sessions
		WHERE exited_at IS NULL
		ORDER BY entered_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]model.OpenSessionRow, error) {
	rows := []model.OpenSessionRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT s.*,
			i.document AS identity_document,
			i.full_name AS identity_name,
			o.name AS operator_name
		FROM access_sessions s
		JOIN identities i ON i.id = s.identity_id
		JOIN operators o ON o.id = s.operator_id
		WHERE s.exited_at IS NULL
		AND s.entered_at <= $1
		ORDER BY s.entered_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *sessionRepo) MarkAlertsPending(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	flipped := []string{}
	err := r.db.SelectContext(ctx, &flipped, `
		UPDATE access_sessions SET
			alert_status = 'pending',
			updated_at = $2
		WHERE id = ANY($1)
		AND exited_at IS NULL
		AND alert_status = 'none'
		RETURNING id
	`, pq.Array(ids), time.Now())
	if err != nil {
		return nil, err
	}
	return flipped, nil
}

func (r *sessionRepo) UpdateAlertStatus(ctx context.Context, id string, status model.AlertStatus, resolvedAt *time.Time) (*model.AccessSession, error) {
	var session model.AccessSession
	err := r.db.GetContext(ctx, &session, `
		UPDATE access_sessions SET
			alert_status = $2,
			alert_resolved_at = COALESCE($3, alert_resolved_at),
			updated_at = $4
		WHERE id = $1
		RETURNING *
	`, id, status, resolvedAt, time.Now())
	return HandleNotFound(&session, err)
}
