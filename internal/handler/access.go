package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/middleware"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/service"
	"github.com/campuspass/access-server-go/internal/util"
)

type AccessHandler struct {
	transitions *service.TransitionService
}

func NewAccessHandler(transitions *service.TransitionService) *AccessHandler {
	return &AccessHandler{transitions: transitions}
}

func (h *AccessHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/transitions", h.RecordTransition)

	return r
}

type transitionRequest struct {
	IdentityID string  `json:"identityId"`
	Direction  string  `json:"direction,omitempty"`
	VehicleID  *string `json:"vehicleId,omitempty"`
}

// POST /v1/access/transitions
func (h *AccessHandler) RecordTransition(w http.ResponseWriter, r *http.Request) {
	operator := middleware.GetOperator(r.Context())
	if operator == nil {
		writeError(w, apperrors.Unauthorized("Operator authentication required"))
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if !util.IsValidUUID(req.IdentityID) {
		writeError(w, apperrors.InvalidInput("identityId", "must be a UUID"))
		return
	}
	if req.VehicleID != nil && !util.IsValidUUID(*req.VehicleID) {
		writeError(w, apperrors.InvalidInput("vehicleId", "must be a UUID"))
		return
	}

	direction := model.DirectionInferred
	switch req.Direction {
	case "":
	case string(model.DirectionEntry):
		direction = model.DirectionEntry
	case string(model.DirectionExit):
		direction = model.DirectionExit
	default:
		writeError(w, apperrors.InvalidInput("direction", "must be entry or exit"))
		return
	}

	outcome, err := h.transitions.Transition(r.Context(), service.TransitionParams{
		IdentityID: req.IdentityID,
		OperatorID: operator.ID,
		Direction:  direction,
		VehicleID:  req.VehicleID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Session.Open() {
		status = http.StatusCreated
	}
	writeJSON(w, status, outcome)
}
