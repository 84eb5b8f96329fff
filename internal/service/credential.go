package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/audit"
	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/sse"
	"github.com/campuspass/access-server-go/internal/util"
)

// AlertPublisher pushes dwell alert events onto the live feed. Satisfied
// by *sse.Broker.
type AlertPublisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// SessionForceCloser is the forced-exit path of the transition engine.
type SessionForceCloser interface {
	ForceClose(ctx context.Context, identityID string, reason string) (*model.AccessSession, error)
}

// CredentialResult carries the credential together with the plaintext
// token, which is shown exactly once at issue/reactivation time.
type CredentialResult struct {
	Credential *model.GateCredential `json:"credential"`
	Token      string                `json:"token"`
}

// CredentialService issues, expires, and reactivates short-lived visitor
// credentials. Validity is always the expires_at check; the background
// sweeper only reclaims rows.
type CredentialService struct {
	credentialRepo repository.CredentialRepository
	identityRepo   repository.IdentityRepository
	transitions    SessionForceCloser
	broker         AlertPublisher
	ttl            time.Duration
	now            func() time.Time
}

func NewCredentialService(
	credentialRepo repository.CredentialRepository,
	identityRepo repository.IdentityRepository,
	transitions SessionForceCloser,
	broker AlertPublisher,
	ttl time.Duration,
) *CredentialService {
	return &CredentialService{
		credentialRepo: credentialRepo,
		identityRepo:   identityRepo,
		transitions:    transitions,
		broker:         broker,
		ttl:            ttl,
		now:            time.Now,
	}
}

// Issue stores a fresh credential expiring TTL from now.
func (s *CredentialService) Issue(ctx context.Context, identityID string) (*CredentialResult, error) {
	if identityID == "" {
		return nil, apperrors.MissingRequired("identityId")
	}
	if err := s.requireIdentity(ctx, identityID); err != nil {
		return nil, err
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	expiresAt := s.now().Add(s.ttl)
	cred, err := s.credentialRepo.Create(ctx, model.CreateCredentialParams{
		IdentityID: identityID,
		Token:      token,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventCredentialIssued,
		IdentityID: identityID,
		Details: map[string]interface{}{
			"token":     util.MaskToken(token),
			"expiresAt": expiresAt.Format(time.RFC3339),
		},
	})

	return &CredentialResult{Credential: cred, Token: token}, nil
}

// Reactivate replaces the token and expiry of an already-expired
// credential in place, or creates one when none exists. A still-valid
// credential is a conflict, not a refresh.
func (s *CredentialService) Reactivate(ctx context.Context, identityID string) (*CredentialResult, error) {
	if identityID == "" {
		return nil, apperrors.MissingRequired("identityId")
	}
	if err := s.requireIdentity(ctx, identityID); err != nil {
		return nil, err
	}

	latest, err := s.credentialRepo.FindLatestByIdentity(ctx, identityID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if latest == nil {
		return s.Issue(ctx, identityID)
	}

	now := s.now()
	if !latest.Expired(now) {
		return nil, apperrors.CredentialStillValid(identityID)
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	expiresAt := now.Add(s.ttl)
	cred, err := s.credentialRepo.Refresh(ctx, latest.ID, token, expiresAt)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if cred == nil {
		// Row reclaimed between the read and the write; issue fresh.
		return s.Issue(ctx, identityID)
	}

	audit.Log(ctx, audit.Event{
		Type:       audit.EventCredentialReactivate,
		IdentityID: identityID,
		Details: map[string]interface{}{
			"token":     util.MaskToken(token),
			"expiresAt": expiresAt.Format(time.RFC3339),
		},
	})

	return &CredentialResult{Credential: cred, Token: token}, nil
}

// ExpireAndCascade ends a visit: the credential's expiry is moved into
// the past and any open session is force-closed with presence cascaded.
// Safe to call repeatedly; a second call with nothing open changes
// nothing.
func (s *CredentialService) ExpireAndCascade(ctx context.Context, identityID string) error {
	if identityID == "" {
		return apperrors.MissingRequired("identityId")
	}

	identity, err := s.identityRepo.FindByID(ctx, identityID)
	if err != nil {
		return apperrors.Storage(err)
	}
	if identity == nil {
		return apperrors.IdentityNotFound(identityID)
	}

	now := s.now()
	latest, err := s.credentialRepo.FindLatestByIdentity(ctx, identityID)
	if err != nil {
		return apperrors.Storage(err)
	}
	if latest != nil && !latest.Expired(now) {
		if err := s.credentialRepo.ExpireNow(ctx, latest.ID, now); err != nil {
			return apperrors.Storage(err)
		}
	}

	closed, err := s.transitions.ForceClose(ctx, identityID, ForcedCloseCredentialExpired)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNoOpenSession) {
			// Nothing open; only the presence residue is left to settle.
			if !identity.Blocked() && identity.Presence != model.PresenceAbsent {
				if err := s.identityRepo.SetPresence(ctx, identityID, model.PresenceAbsent); err != nil {
					return apperrors.Storage(err)
				}
			}
			return nil
		}
		return err
	}

	s.publishForceClosed(ctx, closed)

	audit.Log(ctx, audit.Event{
		Type:       audit.EventCredentialExpired,
		IdentityID: identityID,
		Details: map[string]interface{}{
			"sessionId": closed.ID,
		},
	})

	return nil
}

// Active returns the credential validating the identity right now, or
// nil. Active means: the most-recently-expiring record with expires_at
// still in the future.
func (s *CredentialService) Active(ctx context.Context, identityID string) (*model.GateCredential, error) {
	if identityID == "" {
		return nil, apperrors.MissingRequired("identityId")
	}
	cred, err := s.credentialRepo.FindActiveByIdentity(ctx, identityID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return cred, nil
}

func (s *CredentialService) requireIdentity(ctx context.Context, identityID string) error {
	identity, err := s.identityRepo.FindByID(ctx, identityID)
	if err != nil {
		return apperrors.Storage(err)
	}
	if identity == nil {
		return apperrors.IdentityNotFound(identityID)
	}
	return nil
}

func (s *CredentialService) publishForceClosed(ctx context.Context, session *model.AccessSession) {
	data, err := json.Marshal(session)
	if err != nil {
		log.Error().Err(err).Msg("marshal force-closed session")
		return
	}
	if err := s.broker.Publish(ctx, sse.Event{Type: sse.EventSessionForceClosed, Data: data}); err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("publish force-closed event")
	}
}
