package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"coffee-backend/internal/models"
	"coffee-backend/pkg/utils"
)

type redeliverer interface {
	RedeliverPending(ctx context.Context) (models.RedeliverResult, error)
}

type OutboxHandler struct {
	effects redeliverer
	log     *zap.Logger
}

func NewOutboxHandler(effects redeliverer, log *zap.Logger) *OutboxHandler {
	return &OutboxHandler{effects: effects, log: orNop(log)}
}

// Redeliver handles POST /api/admin/outbox/redeliver
func (h *OutboxHandler) Redeliver(w http.ResponseWriter, r *http.Request) {
	result, err := h.effects.RedeliverPending(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("outbox redelivery requested",
		zap.String("actor", actorFrom(r).Name),
		zap.Int("attempted", result.Attempted),
		zap.Int("delivered", result.Delivered),
	)
	utils.JSON(w, http.StatusOK, result)
}
