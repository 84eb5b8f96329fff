package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/campuspass/access-server-go/internal/database"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/sse"
)

// fakeTxRunner runs the transaction function directly; the mock
// repositories ignore the nil transaction handle.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

type mockIdentityRepo struct {
	mock.Mock
}

func (m *mockIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *mockIdentityRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *mockIdentityRepo) SetPresence(ctx context.Context, id string, presence model.PresenceState) error {
	args := m.Called(ctx, id, presence)
	return args.Error(0)
}

func (m *mockIdentityRepo) WithTx(tx *sqlx.Tx) repository.IdentityRepository {
	return m
}

type mockVehicleRepo struct {
	mock.Mock
}

func (m *mockVehicleRepo) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vehicle), args.Error(1)
}

func (m *mockVehicleRepo) FindOwned(ctx context.Context, id string, ownerID string) (*model.Vehicle, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Vehicle), args.Error(1)
}

func (m *mockVehicleRepo) SetPresence(ctx context.Context, id string, presence model.PresenceState) error {
	args := m.Called(ctx, id, presence)
	return args.Error(0)
}

func (m *mockVehicleRepo) WithTx(tx *sqlx.Tx) repository.VehicleRepository {
	return m
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.AccessSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) FindOpenByIdentity(ctx context.Context, identityID string) (*model.AccessSession, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.AccessSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) Close(ctx context.Context, params model.CloseSessionParams) (*model.AccessSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) ListOpen(ctx context.Context) ([]model.AccessSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) ListOpenEnteredBefore(ctx context.Context, cutoff time.Time) ([]model.OpenSessionRow, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OpenSessionRow), args.Error(1)
}

func (m *mockSessionRepo) MarkAlertsPending(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockSessionRepo) UpdateAlertStatus(ctx context.Context, id string, status model.AlertStatus, resolvedAt *time.Time) (*model.AccessSession, error) {
	args := m.Called(ctx, id, status, resolvedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockCredentialRepo struct {
	mock.Mock
}

func (m *mockCredentialRepo) FindLatestByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GateCredential), args.Error(1)
}

func (m *mockCredentialRepo) FindActiveByIdentity(ctx context.Context, identityID string) (*model.GateCredential, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GateCredential), args.Error(1)
}

func (m *mockCredentialRepo) Create(ctx context.Context, params model.CreateCredentialParams) (*model.GateCredential, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GateCredential), args.Error(1)
}

func (m *mockCredentialRepo) Refresh(ctx context.Context, id string, token string, expiresAt time.Time) (*model.GateCredential, error) {
	args := m.Called(ctx, id, token, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GateCredential), args.Error(1)
}

func (m *mockCredentialRepo) ExpireNow(ctx context.Context, id string, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *mockCredentialRepo) ListExpiredHolders(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockCredentialRepo) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCredentialRepo) WithTx(tx *sqlx.Tx) repository.CredentialRepository {
	return m
}

// mockPublisher records alert events instead of pushing them to Redis.
type mockPublisher struct {
	events []sse.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event sse.Event) error {
	m.events = append(m.events, event)
	return nil
}

// mockForceCloser stands in for the transition engine's forced-exit path.
type mockForceCloser struct {
	mock.Mock
}

func (m *mockForceCloser) ForceClose(ctx context.Context, identityID string, reason string) (*model.AccessSession, error) {
	args := m.Called(ctx, identityID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessSession), args.Error(1)
}
