package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"

	"coffee-backend/internal/config"
)

// idempotencyHeader accompanies every retryable write and is echoed back.
const idempotencyHeader = "Idempotency-Key"

// NewCORS builds the CORS handler from the server section of the config.
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	return cors.New(corsOptions(cfg)).Handler
}

func corsOptions(cfg *config.Config) cors.Options {
	origins := cfg.Server.CorsAllowedOrigins
	headers := cfg.Server.CorsAllowedHeaders
	if !slices.ContainsFunc(headers, func(h string) bool { return strings.EqualFold(h, idempotencyHeader) }) {
		headers = append(slices.Clone(headers), idempotencyHeader)
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: cfg.Server.CorsAllowedMethods,
		AllowedHeaders: headers,
		ExposedHeaders: []string{idempotencyHeader},
		// Browsers refuse credentialed responses for a wildcard origin.
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           int(cfg.Server.CorsMaxAge.Seconds()),
	}
}
