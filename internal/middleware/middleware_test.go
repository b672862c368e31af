package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"coffee-backend/internal/auth"
	"coffee-backend/internal/config"
	"coffee-backend/internal/services"
	"coffee-backend/pkg/utils"
)

type stubValidator map[string]*auth.Claims

func (s stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func echoActor(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	utils.JSON(w, http.StatusOK, actor)
}

func TestAuthenticate(t *testing.T) {
	m := NewAuthMiddleware(stubValidator{"good": {Name: "carol", Role: "finance"}}, nil)
	h := m.Authenticate(http.HandlerFunc(echoActor))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var actor services.Actor
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&actor))
	assert.Equal(t, services.Actor{Name: "carol", Role: "finance"}, actor)
}

func TestUnauthorizedUsesErrorEnvelope(t *testing.T) {
	m := NewAuthMiddleware(stubValidator{}, nil)
	rec := httptest.NewRecorder()
	m.Authenticate(http.HandlerFunc(echoActor)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests/money", nil))

	var body utils.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(stubValidator{}, nil)
	h := m.RequireAdmin(http.HandlerFunc(echoActor))

	for role, want := range map[string]int{"admin": http.StatusOK, "finance": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/outbox/redeliver", nil)
		req = req.WithContext(WithActor(req.Context(), services.Actor{Name: "x", Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/outbox/redeliver", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := PanicRecovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/batches", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestAPILoggingLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := APILogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/batches", "/api/missing", "/health/ready"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("api request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", getClientIP(req))
}

func TestCORSExposesIdempotencyKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.CorsAllowedOrigins = []string{"https://factory.example"}
	cfg.Server.CorsAllowedMethods = []string{"GET", "POST"}
	cfg.Server.CorsAllowedHeaders = []string{"Authorization", "Content-Type", "Idempotency-Key"}

	h := NewCORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/1/payments", nil)
	req.Header.Set("Origin", "https://factory.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://factory.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Idempotency-Key", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.CorsAllowedOrigins = []string{"*"}
	cfg.Server.CorsAllowedMethods = []string{"GET", "POST", "PUT"}
	cfg.Server.CorsAllowedHeaders = []string{"Authorization", "Content-Type"}
	cfg.Server.CorsMaxAge = 10 * time.Minute

	opts := corsOptions(cfg)
	assert.Equal(t, []string{"*"}, opts.AllowedOrigins)
	assert.Equal(t, []string{"GET", "POST", "PUT"}, opts.AllowedMethods)
	assert.Equal(t, []string{"Authorization", "Content-Type", "Idempotency-Key"}, opts.AllowedHeaders)
	assert.Equal(t, []string{"Authorization", "Content-Type"}, cfg.Server.CorsAllowedHeaders)
	assert.False(t, opts.AllowCredentials)
	assert.Equal(t, 600, opts.MaxAge)
}
