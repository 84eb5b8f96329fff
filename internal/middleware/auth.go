package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/campuspass/access-server-go/internal/audit"
	"github.com/campuspass/access-server-go/internal/model"
	"github.com/campuspass/access-server-go/internal/repository"
	"github.com/campuspass/access-server-go/internal/util"
)

type contextKey string

const OperatorContextKey contextKey = "operator"

func GetOperator(ctx context.Context) *model.Operator {
	if operator, ok := ctx.Value(OperatorContextKey).(*model.Operator); ok {
		return operator
	}
	return nil
}

type AuthMiddleware struct {
	operatorRepo repository.OperatorRepository
}

func NewAuthMiddleware(operatorRepo repository.OperatorRepository) *AuthMiddleware {
	return &AuthMiddleware{operatorRepo: operatorRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		tokenHash := util.HashToken(token)
		operator, err := m.operatorRepo.FindByTokenHash(r.Context(), tokenHash)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if operator == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
