package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/service"
	"github.com/campuspass/access-server-go/internal/util"
)

type AlertHandler struct {
	alerts *service.AlertService
}

func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/{sessionID}/status", h.UpdateStatus)

	return r
}

// GET /v1/alerts?thresholdMinutes=N
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	threshold := h.alerts.DefaultThreshold()
	if raw := r.URL.Query().Get("thresholdMinutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, apperrors.InvalidInput("thresholdMinutes", "must be a positive integer"))
			return
		}
		threshold = time.Duration(minutes) * time.Minute
	}

	alerts, err := h.alerts.ListAlerts(r.Context(), threshold)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":           alerts,
		"thresholdMinutes": int(threshold.Minutes()),
	})
}

type updateAlertRequest struct {
	Status string `json:"status"`
}

// POST /v1/alerts/{sessionID}/status
func (h *AlertHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !util.IsValidUUID(sessionID) {
		writeError(w, apperrors.InvalidInput("sessionId", "must be a UUID"))
		return
	}

	var req updateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	session, err := h.alerts.UpdateAlertStatus(r.Context(), sessionID, model.AlertStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}
