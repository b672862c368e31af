package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"coffee-backend/pkg/utils"
)

func PanicRecovery(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered",
						zap.Any("panic", err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					utils.Error(w, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
