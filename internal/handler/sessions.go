package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/util"
)

// SessionHandler exposes read-only views of the session ledger for the
// monitoring dashboard. Mutation always goes through the transition
// endpoints.
type SessionHandler struct {
	sessionRepo  repository.SessionRepository
	identityRepo repository.IdentityRepository
}

func NewSessionHandler(sessionRepo repository.SessionRepository, identityRepo repository.IdentityRepository) *SessionHandler {
	return &SessionHandler{sessionRepo: sessionRepo, identityRepo: identityRepo}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/open", h.ListOpen)
	r.Get("/{sessionID}", h.Get)

	return r
}

// GET /v1/sessions/open
func (h *SessionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionRepo.ListOpen(r.Context())
	if err != nil {
		writeError(w, apperrors.Storage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !util.IsValidUUID(sessionID) {
		writeError(w, apperrors.InvalidInput("sessionId", "must be a UUID"))
		return
	}

	session, err := h.sessionRepo.FindByID(r.Context(), sessionID)
	if err != nil {
		writeError(w, apperrors.Storage(err))
		return
	}
	if session == nil {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// IdentityHandler is the read side of the identity store used by gate
// dashboards.
type IdentityHandler struct {
	identityRepo repository.IdentityRepository
}

func NewIdentityHandler(identityRepo repository.IdentityRepository) *IdentityHandler {
	return &IdentityHandler{identityRepo: identityRepo}
}

func (h *IdentityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{identityID}", h.Get)

	return r
}

// GET /v1/identities/{identityID}
func (h *IdentityHandler) Get(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identityID")
	if !util.IsValidUUID(identityID) {
		writeError(w, apperrors.InvalidInput("identityId", "must be a UUID"))
		return
	}

	identity, err := h.identityRepo.FindByID(r.Context(), identityID)
	if err != nil {
		writeError(w, apperrors.Storage(err))
		return
	}
	if identity == nil {
		writeError(w, apperrors.IdentityNotFound(identityID))
		return
	}

	writeJSON(w, http.StatusOK, identity)
}
