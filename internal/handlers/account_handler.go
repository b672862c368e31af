package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
	"coffee-backend/pkg/utils"
)

type ledgerService interface {
	OpenAccount(ctx context.Context, in models.OpenAccountInput, actor string) (*models.BalanceAccount, error)
	ApplyPayment(ctx context.Context, accountID int64, in models.ApplyPaymentInput, actor string) (*models.PaymentResult, error)
	Get(ctx context.Context, id int64) (*models.BalanceAccount, error)
	List(ctx context.Context, status models.AccountStatus) ([]*models.BalanceAccount, error)
	ListPayments(ctx context.Context, accountID int64) ([]*models.PaymentEvent, error)
}

// AccountHandler serves balance accounts and their payments
type AccountHandler struct {
	ledger ledgerService
	log    *zap.Logger
}

func NewAccountHandler(ledger ledgerService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{ledger: ledger, log: orNop(log)}
}

// Open handles POST /api/accounts
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var in models.OpenAccountInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	acct, err := h.ledger.OpenAccount(r.Context(), in, actorFrom(r).Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusCreated, acct)
}

// List handles GET /api/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.List(r.Context(), models.AccountStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if accounts == nil {
		accounts = []*models.BalanceAccount{}
	}
	utils.JSON(w, http.StatusOK, accounts)
}

// Get handles GET /api/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	acct, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, acct)
}

// ListPayments handles GET /api/accounts/{id}/payments
func (h *AccountHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	payments, err := h.ledger.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if payments == nil {
		payments = []*models.PaymentEvent{}
	}
	utils.JSON(w, http.StatusOK, payments)
}

// ApplyPayment handles POST /api/accounts/{id}/payments. The Idempotency-Key
// header wins over a key in the body; without either a fresh key is used, so
// the call is not safe to retry.
func (h *AccountHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var in models.ApplyPaymentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	// A generated key would make client retries apply the payment twice.
	if in.IdempotencyKey = idempotencyKey(r, in.IdempotencyKey); in.IdempotencyKey == "" {
		writeError(w, h.log, apperr.Validation("Idempotency-Key header required"))
		return
	}

	result, err := h.ledger.ApplyPayment(r.Context(), id, in, actorFrom(r).Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Idempotency-Key", result.IdempotencyKey)
	utils.JSON(w, status, result)
}
