package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/campuspass/access-server-go/internal/errors"
	"github.com/campuspass/access-server-go/internal/service"
	"github.com/campuspass/access-server-go/internal/util"
)

type CredentialHandler struct {
	credentials *service.CredentialService
}

func NewCredentialHandler(credentials *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

func (h *CredentialHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Issue)
	r.Post("/{identityID}/reactivate", h.Reactivate)
	r.Post("/{identityID}/expire", h.Expire)
	r.Get("/{identityID}/active", h.Active)

	return r
}

type issueRequest struct {
	IdentityID string `json:"identityId"`
}

// POST /v1/credentials
func (h *CredentialHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if !util.IsValidUUID(req.IdentityID) {
		writeError(w, apperrors.InvalidInput("identityId", "must be a UUID"))
		return
	}

	result, err := h.credentials.Issue(r.Context(), req.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// identityParam validates the identityID path parameter before it
// reaches a uuid-typed column.
func identityParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "identityID")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("identityId", "must be a UUID"))
		return "", false
	}
	return id, true
}

// POST /v1/credentials/{identityID}/reactivate
func (h *CredentialHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}

	result, err := h.credentials.Reactivate(r.Context(), identityID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/credentials/{identityID}/expire
func (h *CredentialHandler) Expire(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}

	if err := h.credentials.ExpireAndCascade(r.Context(), identityID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/credentials/{identityID}/active
func (h *CredentialHandler) Active(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}

	cred, err := h.credentials.Active(r.Context(), identityID)
	if err != nil {
		writeError(w, err)
		return
	}

	if cred == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":    true,
		"expiresAt": cred.ExpiresAt.Format(time.RFC3339),
	})
}
