package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"coffee-backend/internal/auth"
	"coffee-backend/internal/services"
	"coffee-backend/pkg/utils"
)

type contextKey string

const actorKey contextKey = "actor"

type tokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens tokenValidator
	log    *zap.Logger
}

func NewAuthMiddleware(tokens tokenValidator, log *zap.Logger) *AuthMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, log: log}
}

// Authenticate validates the bearer token and stores the actor in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, "Invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			m.log.Debug("token rejected", zap.Error(err), zap.String("path", r.URL.Path))
			unauthorized(w, "Invalid or expired token")
			return
		}

		actor := services.Actor{Name: claims.Name, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole rejects authenticated actors whose role is not in allowedRoles.
// It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				unauthorized(w, "Authorization header required")
				return
			}
			for _, role := range allowedRoles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.Error(w, http.StatusForbidden, "FORBIDDEN", "Forbidden: Insufficient permissions", map[string]any{"role": actor.Role})
		})
	}
}

// RequireAdmin is a middleware that ensures the user has admin role
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole("admin")(next)
}

func WithActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated actor from request context
func ActorFromContext(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(services.Actor)
	return actor, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	utils.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

// TokenFromQuery lets websocket clients, which cannot set headers, pass the
// bearer token as ?token=.
func TokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}
