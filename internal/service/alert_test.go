package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/sse"
)

func newAlertFixture(threshold time.Duration) (*AlertService, *mockSessionRepo, *mockPublisher) {
	sessionRepo := new(mockSessionRepo)
	publisher := &mockPublisher{}
	svc := NewAlertService(sessionRepo, publisher, threshold)
	return svc, sessionRepo, publisher
}

func openRow(id, identityID string, enteredAt time.Time, status model.AlertStatus) model.OpenSessionRow {
	return model.OpenSessionRow{
		AccessSession: model.AccessSession{
			ID:          id,
			IdentityID:  identityID,
			EnteredAt:   enteredAt,
			AlertStatus: status,
		},
	}
}

func TestListAlerts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	threshold := 8 * time.Hour

	t.Run("flips fresh overdue sessions to pending and announces them", func(t *testing.T) {
		svc, sessionRepo, publisher := newAlertFixture(threshold)
		svc.now = func() time.Time { return now }

		rows := []model.OpenSessionRow{
			openRow("sess-1", "id-1", now.Add(-10*time.Hour), model.AlertNone),
			openRow("sess-2", "id-2", now.Add(-9*time.Hour), model.AlertAcknowledged),
		}
		sessionRepo.On("ListOpenEnteredBefore", ctx, now.Add(-threshold)).Return(rows, nil)
		sessionRepo.On("MarkAlertsPending", ctx, []string{"sess-1"}).Return([]string{"sess-1"}, nil)

		alerts, err := svc.ListAlerts(ctx, threshold)

		require.NoError(t, err)
		require.Len(t, alerts, 2)
		// Longest dwell first, as the store returns them.
		assert.Equal(t, "sess-1", alerts[0].ID)
		assert.Equal(t, model.AlertPending, alerts[0].AlertStatus)
		assert.Equal(t, 600, alerts[0].ElapsedMinutes)
		assert.Equal(t, "sess-2", alerts[1].ID)
		assert.Equal(t, model.AlertAcknowledged, alerts[1].AlertStatus)

		require.Len(t, publisher.events, 1)
		assert.Equal(t, sse.EventAlertRaised, publisher.events[0].Type)
		sessionRepo.AssertExpectations(t)
	})

	t.Run("already pending sessions are listed without re-announcing", func(t *testing.T) {
		svc, sessionRepo, publisher := newAlertFixture(threshold)
		svc.now = func() time.Time { return now }

		rows := []model.OpenSessionRow{
			openRow("sess-1", "id-1", now.Add(-9*time.Hour), model.AlertPending),
		}
		sessionRepo.On("ListOpenEnteredBefore", ctx, now.Add(-threshold)).Return(rows, nil)

		alerts, err := svc.ListAlerts(ctx, threshold)

		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Empty(t, publisher.events)
		sessionRepo.AssertNotCalled(t, "MarkAlertsPending", mock.Anything, mock.Anything)
	})

	t.Run("zero threshold falls back to the default", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(threshold)
		svc.now = func() time.Time { return now }

		sessionRepo.On("ListOpenEnteredBefore", ctx, now.Add(-threshold)).Return([]model.OpenSessionRow{}, nil)

		alerts, err := svc.ListAlerts(ctx, 0)

		require.NoError(t, err)
		assert.Empty(t, alerts)
		sessionRepo.AssertExpectations(t)
	})

	t.Run("a racing flip loses quietly", func(t *testing.T) {
		svc, sessionRepo, publisher := newAlertFixture(threshold)
		svc.now = func() time.Time { return now }

		rows := []model.OpenSessionRow{
			openRow("sess-1", "id-1", now.Add(-9*time.Hour), model.AlertNone),
		}
		sessionRepo.On("ListOpenEnteredBefore", ctx, now.Add(-threshold)).Return(rows, nil)
		// Another poller flipped it first; the update returns no rows.
		sessionRepo.On("MarkAlertsPending", ctx, []string{"sess-1"}).Return([]string{}, nil)

		alerts, err := svc.ListAlerts(ctx, threshold)

		require.NoError(t, err)
		require.Len(t, alerts, 1)
		assert.Equal(t, model.AlertNone, alerts[0].AlertStatus)
		assert.Empty(t, publisher.events)
	})
}

func TestUpdateAlertStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

	t.Run("pending to acknowledged", func(t *testing.T) {
		svc, sessionRepo, publisher := newAlertFixture(8 * time.Hour)
		svc.now = func() time.Time { return now }

		session := &model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertPending}
		sessionRepo.On("FindByID", ctx, "sess-1").Return(session, nil)
		sessionRepo.On("UpdateAlertStatus", ctx, "sess-1", model.AlertAcknowledged, (*time.Time)(nil)).
			Return(&model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertAcknowledged}, nil)

		updated, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertAcknowledged)

		require.NoError(t, err)
		assert.Equal(t, model.AlertAcknowledged, updated.AlertStatus)
		require.Len(t, publisher.events, 1)
		assert.Equal(t, sse.EventAlertUpdated, publisher.events[0].Type)
	})

	t.Run("acknowledged to resolved stamps resolution time", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(8 * time.Hour)
		svc.now = func() time.Time { return now }

		session := &model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertAcknowledged}
		sessionRepo.On("FindByID", ctx, "sess-1").Return(session, nil)
		sessionRepo.On("UpdateAlertStatus", ctx, "sess-1", model.AlertResolved, mock.MatchedBy(func(ts *time.Time) bool {
			return ts != nil && ts.Equal(now)
		})).Return(&model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertResolved, AlertResolvedAt: &now}, nil)

		updated, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertResolved)

		require.NoError(t, err)
		require.NotNil(t, updated.AlertResolvedAt)
		sessionRepo.AssertExpectations(t)
	})

	t.Run("pending straight to resolved is allowed", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(8 * time.Hour)
		svc.now = func() time.Time { return now }

		session := &model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertPending}
		sessionRepo.On("FindByID", ctx, "sess-1").Return(session, nil)
		sessionRepo.On("UpdateAlertStatus", ctx, "sess-1", model.AlertResolved, mock.Anything).
			Return(&model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertResolved}, nil)

		_, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertResolved)

		require.NoError(t, err)
	})

	t.Run("resolved is terminal", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(8 * time.Hour)

		session := &model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertResolved}
		sessionRepo.On("FindByID", ctx, "sess-1").Return(session, nil)

		_, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertAcknowledged)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidAlertTransition))
		sessionRepo.AssertNotCalled(t, "UpdateAlertStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no alert raised yet", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(8 * time.Hour)

		session := &model.AccessSession{ID: "sess-1", IdentityID: "id-1", AlertStatus: model.AlertNone}
		sessionRepo.On("FindByID", ctx, "sess-1").Return(session, nil)

		_, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertAcknowledged)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidAlertTransition))
	})

	t.Run("rejects statuses outside the workflow", func(t *testing.T) {
		svc, _, _ := newAlertFixture(8 * time.Hour)

		_, err := svc.UpdateAlertStatus(ctx, "sess-1", model.AlertPending)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, sessionRepo, _ := newAlertFixture(8 * time.Hour)
		sessionRepo.On("FindByID", ctx, "nope").Return(nil, nil)

		_, err := svc.UpdateAlertStatus(ctx, "nope", model.AlertAcknowledged)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})
}
