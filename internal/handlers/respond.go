package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/middleware"
	"coffee-backend/internal/services"
	"coffee-backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindApprovalOrder, apperr.KindTerminalState, apperr.KindConflict, apperr.KindDuplicate:
		return http.StatusConflict
	case apperr.KindInsufficientBalance, apperr.KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Internal errors are logged
// and their message hidden from the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Error("unhandled error", zap.Error(err))
		utils.Error(w, http.StatusInternalServerError, string(apperr.KindInternal), "Internal server error", nil)
		return
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
	utils.Error(w, status, string(e.Kind), e.Message, e.Details)
}

// decodeJSON reads a single JSON object into dst and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw).With("field", name)
	}
	return id, nil
}

func actorFrom(r *http.Request) services.Actor {
	actor, _ := middleware.ActorFromContext(r.Context())
	return actor
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// idempotencyKey returns the Idempotency-Key header when set, else the key
// carried in the body.
func idempotencyKey(r *http.Request, body string) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	return strings.TrimSpace(body)
}
