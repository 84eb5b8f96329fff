package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/audit"
	"github.com/campuspass/access-server-go/internal/config"
	"github.com/campuspass/access-server-go/internal/database"
	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/repository"
)

const timeOfDayLayout = "15:04:05"

// ForcedCloseCredentialExpired is recorded on sessions closed because the
// holder's temporary credential ran out.
const ForcedCloseCredentialExpired = "credential_expired"

// TxRunner runs a function inside a database transaction. Satisfied by
// *database.DB.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type TransitionParams struct {
	IdentityID string
	OperatorID string
	// Direction is DirectionInferred when the scan carried no explicit
	// direction; it is resolved exactly once inside the transaction.
	Direction model.Direction
	VehicleID *string
}

// TransitionOutcome is the session joined with the identity and vehicle
// rows as they stand after the commit.
type TransitionOutcome struct {
	Session  *model.AccessSession `json:"session"`
	Identity *model.Identity      `json:"identity"`
	Vehicle  *model.Vehicle       `json:"vehicle,omitempty"`
}

// TransitionService decides, for a scanned identity, whether to open or
// close a presence session, and keeps identity and vehicle presence
// consistent with the session ledger. All coordination state lives in the
// ledger: the identity row is locked for the read-decide-write sequence,
// and a partial unique index on open sessions backstops double entries.
type TransitionService struct {
	db             TxRunner
	identityRepo   repository.IdentityRepository
	vehicleRepo    repository.VehicleRepository
	sessionRepo    repository.SessionRepository
	credentialRepo repository.CredentialRepository
	now            func() time.Time
}

func NewTransitionService(
	db TxRunner,
	identityRepo repository.IdentityRepository,
	vehicleRepo repository.VehicleRepository,
	sessionRepo repository.SessionRepository,
	credentialRepo repository.CredentialRepository,
) *TransitionService {
	return &TransitionService{
		db:             db,
		identityRepo:   identityRepo,
		vehicleRepo:    vehicleRepo,
		sessionRepo:    sessionRepo,
		credentialRepo: credentialRepo,
		now:            time.Now,
	}
}

func (s *TransitionService) Transition(ctx context.Context, params TransitionParams) (*TransitionOutcome, error) {
	if params.IdentityID == "" {
		return nil, apperrors.MissingRequired("identityId")
	}
	if params.OperatorID == "" {
		return nil, apperrors.MissingRequired("operatorId")
	}
	if !params.Direction.Valid() {
		return nil, apperrors.InvalidInput("direction", "must be entry or exit")
	}

	var outcome *TransitionOutcome
	var err error
	for attempt := 0; attempt < config.TransitionMaxRetries; attempt++ {
		outcome, err = s.attempt(ctx, params)
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) {
			// Concurrent scan won the race to open a session.
			return nil, apperrors.SessionAlreadyOpen(params.IdentityID)
		}
		if !repository.IsRetryableTxError(err) {
			break
		}
		log.Warn().
			Err(err).
			Str("identityId", params.IdentityID).
			Int("attempt", attempt+1).
			Msg("transition conflicted, retrying")
	}
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:       auditTypeFor(outcome.Session),
		IdentityID: outcome.Identity.ID,
		OperatorID: outcome.Session.OperatorID,
		Details: map[string]interface{}{
			"sessionId": outcome.Session.ID,
		},
	})

	return outcome, nil
}

func auditTypeFor(session *model.AccessSession) audit.EventType {
	if session.Open() {
		return audit.EventEntryRecorded
	}
	return audit.EventExitRecorded
}

func (s *TransitionService) attempt(ctx context.Context, params TransitionParams) (*TransitionOutcome, error) {
	var outcome *TransitionOutcome
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.runLocked(ctx, tx, params, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *TransitionService) runLocked(ctx context.Context, tx *sqlx.Tx, params TransitionParams, outcome **TransitionOutcome) error {
	identityRepo := s.identityRepo.WithTx(tx)
	sessionRepo := s.sessionRepo.WithTx(tx)
	vehicleRepo := s.vehicleRepo.WithTx(tx)

	identity, err := identityRepo.FindByIDForUpdate(ctx, params.IdentityID)
	if err != nil {
		return apperrors.Storage(err)
	}
	if identity == nil {
		return apperrors.IdentityNotFound(params.IdentityID)
	}
	if identity.Blocked() {
		return apperrors.IdentityBlocked(identity.ID)
	}

	direction := ResolveDirection(params.Direction, identity.Presence)

	var vehicle *model.Vehicle
	if params.VehicleID != nil {
		vehicle, err = vehicleRepo.FindByID(ctx, *params.VehicleID)
		if err != nil {
			return apperrors.Storage(err)
		}
		if vehicle == nil {
			return apperrors.VehicleNotFound(*params.VehicleID)
		}
		if vehicle.OwnerID != identity.ID {
			return apperrors.VehicleNotOwned(vehicle.ID, identity.ID)
		}
	}

	now := s.now()

	switch direction {
	case model.DirectionExit:
		return s.runExit(ctx, tx, identity, vehicle, now, outcome)
	default:
		return s.runEntry(ctx, tx, params, identity, vehicle, now, sessionRepo, outcome)
	}
}

func (s *TransitionService) runEntry(
	ctx context.Context,
	tx *sqlx.Tx,
	params TransitionParams,
	identity *model.Identity,
	vehicle *model.Vehicle,
	now time.Time,
	sessionRepo repository.SessionRepository,
	outcome **TransitionOutcome,
) error {
	if identity.Role.RequiresCredential() {
		cred, err := s.credentialRepo.WithTx(tx).FindActiveByIdentity(ctx, identity.ID)
		if err != nil {
			return apperrors.Storage(err)
		}
		if cred == nil {
			return apperrors.CredentialExpiredOrMissing(identity.ID)
		}
	}

	// An explicit entry against an open session is a caller mistake and
	// reported as such. With an inferred direction the presence state
	// already told us no session should be open; the partial unique index
	// still backstops the race.
	if params.Direction == model.DirectionEntry {
		open, err := sessionRepo.FindOpenByIdentity(ctx, identity.ID)
		if err != nil {
			return apperrors.Storage(err)
		}
		if open != nil {
			return apperrors.SessionAlreadyOpen(identity.ID)
		}
	}

	createParams := model.CreateSessionParams{
		IdentityID:       identity.ID,
		OperatorID:       params.OperatorID,
		EnteredAt:        now,
		EnteredTimeOfDay: now.Format(timeOfDayLayout),
	}
	if vehicle != nil {
		createParams.VehicleID = &vehicle.ID
	}

	session, err := sessionRepo.Create(ctx, createParams)
	if err != nil {
		return err
	}

	if err := s.applyPresence(ctx, tx, identity, vehicle, model.PresencePresent); err != nil {
		return err
	}

	*outcome = &TransitionOutcome{Session: session, Identity: identity, Vehicle: vehicle}
	return nil
}

func (s *TransitionService) runExit(
	ctx context.Context,
	tx *sqlx.Tx,
	identity *model.Identity,
	vehicle *model.Vehicle,
	now time.Time,
	outcome **TransitionOutcome,
) error {
	sessionRepo := s.sessionRepo.WithTx(tx)

	open, err := sessionRepo.FindOpenByIdentity(ctx, identity.ID)
	if err != nil {
		return apperrors.Storage(err)
	}
	if open == nil {
		return apperrors.NoOpenSession(identity.ID)
	}

	// A session opened with a vehicle closes with it even when the exit
	// scan did not name one.
	if vehicle == nil && open.VehicleID != nil {
		vehicle, err = s.vehicleRepo.WithTx(tx).FindByID(ctx, *open.VehicleID)
		if err != nil {
			return apperrors.Storage(err)
		}
	}

	session, err := sessionRepo.Close(ctx, BuildClose(open, now))
	if err != nil {
		return apperrors.Storage(err)
	}
	if session == nil {
		return apperrors.NoOpenSession(identity.ID)
	}

	if err := s.applyPresence(ctx, tx, identity, vehicle, model.PresenceAbsent); err != nil {
		return err
	}

	*outcome = &TransitionOutcome{Session: session, Identity: identity, Vehicle: vehicle}
	return nil
}

// ForceClose closes the identity's open session on the system's behalf,
// recording the reason and resolving any dwell alert. Returns
// NoOpenSession when nothing is open; callers needing idempotence treat
// that code as a no-op.
func (s *TransitionService) ForceClose(ctx context.Context, identityID string, reason string) (*model.AccessSession, error) {
	if identityID == "" {
		return nil, apperrors.MissingRequired("identityId")
	}

	var closed *model.AccessSession
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		identityRepo := s.identityRepo.WithTx(tx)
		sessionRepo := s.sessionRepo.WithTx(tx)

		identity, err := identityRepo.FindByIDForUpdate(ctx, identityID)
		if err != nil {
			return apperrors.Storage(err)
		}
		if identity == nil {
			return apperrors.IdentityNotFound(identityID)
		}

		open, err := sessionRepo.FindOpenByIdentity(ctx, identityID)
		if err != nil {
			return apperrors.Storage(err)
		}
		if open == nil {
			return apperrors.NoOpenSession(identityID)
		}

		now := s.now()
		params := BuildClose(open, now)
		params.ForcedClose = true
		params.ForcedCloseReason = &reason
		resolved := model.AlertResolved
		params.AlertStatus = &resolved
		params.AlertResolvedAt = &now

		closed, err = sessionRepo.Close(ctx, params)
		if err != nil {
			return apperrors.Storage(err)
		}
		if closed == nil {
			return apperrors.NoOpenSession(identityID)
		}

		var vehicle *model.Vehicle
		if open.VehicleID != nil {
			vehicle, err = s.vehicleRepo.WithTx(tx).FindByID(ctx, *open.VehicleID)
			if err != nil {
				return apperrors.Storage(err)
			}
		}

		// Blocked is a moderation state, never overwritten by a cascade.
		if identity.Blocked() {
			if vehicle != nil {
				if err := s.vehicleRepo.WithTx(tx).SetPresence(ctx, vehicle.ID, model.PresenceAbsent); err != nil {
					return apperrors.Storage(err)
				}
			}
			return nil
		}

		return s.applyPresence(ctx, tx, identity, vehicle, model.PresenceAbsent)
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventForcedClose,
		IdentityID: identityID,
		Details: map[string]interface{}{
			"sessionId": closed.ID,
			"reason":    reason,
		},
	})

	return closed, nil
}

// applyPresence writes the presence byproduct of a session write to the
// identity and, when one is linked, the vehicle.
func (s *TransitionService) applyPresence(
	ctx context.Context,
	tx *sqlx.Tx,
	identity *model.Identity,
	vehicle *model.Vehicle,
	presence model.PresenceState,
) error {
	if err := s.identityRepo.WithTx(tx).SetPresence(ctx, identity.ID, presence); err != nil {
		return apperrors.Storage(err)
	}
	identity.Presence = presence

	if vehicle != nil {
		if err := s.vehicleRepo.WithTx(tx).SetPresence(ctx, vehicle.ID, presence); err != nil {
			return apperrors.Storage(err)
		}
		vehicle.Presence = presence
	}
	return nil
}

// ResolveDirection turns an inferred direction into a concrete one:
// a present identity is exiting, anyone else is entering.
func ResolveDirection(requested model.Direction, presence model.PresenceState) model.Direction {
	if requested != model.DirectionInferred {
		return requested
	}
	if presence == model.PresencePresent {
		return model.DirectionExit
	}
	return model.DirectionEntry
}

// BuildClose computes the in-place mutation for a scanned exit. Forced
// close markers from an earlier lifecycle are cleared; alert fields are
// left untouched.
func BuildClose(open *model.AccessSession, now time.Time) model.CloseSessionParams {
	return model.CloseSessionParams{
		SessionID:       open.ID,
		ExitedAt:        now,
		ExitedTimeOfDay: now.Format(timeOfDayLayout),
		DurationLabel:   FormatDuration(now.Sub(open.EnteredAt)),
	}
}

// FormatDuration renders an elapsed time as HH:MM:SS. Negative elapsed
// time (clock skew between writes) clamps to zero rather than erroring.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
