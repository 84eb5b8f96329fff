package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/audit"
	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/sse"
)

// DwellAlert is an open session that outstayed the threshold, joined
// with display fields for the monitoring dashboard.
type DwellAlert struct {
	model.OpenSessionRow
	ElapsedMinutes int `json:"elapsedMinutes"`
}

// AlertService derives alert state from elapsed time on open sessions
// and runs the pending → acknowledged → resolved moderation workflow.
// It never opens or closes sessions.
type AlertService struct {
	sessionRepo      repository.SessionRepository
	broker           AlertPublisher
	defaultThreshold time.Duration
	now              func() time.Time
}

func NewAlertService(
	sessionRepo repository.SessionRepository,
	broker AlertPublisher,
	defaultThreshold time.Duration,
) *AlertService {
	return &AlertService{
		sessionRepo:      sessionRepo,
		broker:           broker,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

func (s *AlertService) DefaultThreshold() time.Duration {
	return s.defaultThreshold
}

// ListAlerts returns open sessions that have dwelled at least threshold,
// longest first. Sessions crossing the threshold for the first time are
// flipped from none to pending and announced on the live feed.
func (s *AlertService) ListAlerts(ctx context.Context, threshold time.Duration) ([]DwellAlert, error) {
	if threshold <= 0 {
		threshold = s.defaultThreshold
	}

	now := s.now()
	cutoff := now.Add(-threshold)

	rows, err := s.sessionRepo.ListOpenEnteredBefore(ctx, cutoff)
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	var fresh []string
	for _, row := range rows {
		if row.AlertStatus == model.AlertNone {
			fresh = append(fresh, row.ID)
		}
	}

	flipped := map[string]bool{}
	if len(fresh) > 0 {
		ids, err := s.sessionRepo.MarkAlertsPending(ctx, fresh)
		if err != nil {
			return nil, apperrors.Storage(err)
		}
		for _, id := range ids {
			flipped[id] = true
		}
	}

	// Rows come back oldest entry first, which is longest dwell first.
	alerts := make([]DwellAlert, 0, len(rows))
	for _, row := range rows {
		if flipped[row.ID] {
			row.AlertStatus = model.AlertPending
		}
		alert := DwellAlert{
			OpenSessionRow: row,
			ElapsedMinutes: int(now.Sub(row.EnteredAt).Minutes()),
		}
		alerts = append(alerts, alert)

		if flipped[row.ID] {
			s.publish(ctx, sse.EventAlertRaised, alert)
			audit.Log(ctx, audit.Event{
				Type:       audit.EventAlertRaised,
				IdentityID: row.IdentityID,
				Details: map[string]interface{}{
					"sessionId":      row.ID,
					"elapsedMinutes": alert.ElapsedMinutes,
				},
			})
		}
	}

	return alerts, nil
}

// UpdateAlertStatus advances a session's alert through the moderation
// workflow. Allowed: pending → acknowledged, pending → resolved,
// acknowledged → resolved. Resolved is terminal. The session's
// open/closed state is untouched.
func (s *AlertService) UpdateAlertStatus(ctx context.Context, sessionID string, next model.AlertStatus) (*model.AccessSession, error) {
	if sessionID == "" {
		return nil, apperrors.MissingRequired("sessionId")
	}
	if next != model.AlertAcknowledged && next != model.AlertResolved {
		return nil, apperrors.InvalidInput("status", "must be acknowledged or resolved")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	if !alertTransitionAllowed(session.AlertStatus, next) {
		return nil, apperrors.InvalidAlertTransition(string(session.AlertStatus), string(next))
	}

	var resolvedAt *time.Time
	if next == model.AlertResolved {
		now := s.now()
		resolvedAt = &now
	}

	updated, err := s.sessionRepo.UpdateAlertStatus(ctx, sessionID, next, resolvedAt)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	if updated == nil {
		return nil, apperrors.NotFound("Session")
	}

	s.publish(ctx, sse.EventAlertUpdated, updated)
	audit.Log(ctx, audit.Event{
		Type:       audit.EventAlertUpdated,
		IdentityID: updated.IdentityID,
		Details: map[string]interface{}{
			"sessionId": updated.ID,
			"status":    string(next),
		},
	})

	return updated, nil
}

func alertTransitionAllowed(from, to model.AlertStatus) bool {
	switch from {
	case model.AlertPending:
		return to == model.AlertAcknowledged || to == model.AlertResolved
	case model.AlertAcknowledged:
		return to == model.AlertResolved
	}
	return false
}

func (s *AlertService) publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal alert event")
		return
	}
	if err := s.broker.Publish(ctx, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Error().Err(err).Str("eventType", eventType).Msg("publish alert event")
	}
}
