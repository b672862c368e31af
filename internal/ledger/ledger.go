// Package ledger applies payments to balance accounts.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

// Payment is a validated request to reduce an account's outstanding balance.
type Payment struct {
	Amount         decimal.Decimal
	Method         string
	Actor          string
	IdempotencyKey string
}

func (p Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero").With("amount", p.Amount.String())
	}
	if strings.TrimSpace(p.Method) == "" {
		return apperr.Validation("payment method is required")
	}
	if strings.TrimSpace(p.Actor) == "" {
		return apperr.Validation("actor is required")
	}
	if strings.TrimSpace(p.IdempotencyKey) == "" {
		return apperr.Validation("idempotency key is required")
	}
	return nil
}

// Apply computes the account state after p and the event recording it.
// The caller persists both as one unit.
func Apply(acct *models.BalanceAccount, p Payment, now time.Time) (*models.BalanceAccount, *models.PaymentEvent, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if acct.Status == models.AccountStatusCleared {
		return nil, nil, apperr.New(apperr.KindInsufficientBalance,
			"account %d is already cleared", acct.ID).
			With("available", acct.CurrentOutstanding.String())
	}
	if p.Amount.GreaterThan(acct.CurrentOutstanding) {
		return nil, nil, apperr.New(apperr.KindInsufficientBalance,
			"payment of %s exceeds outstanding balance of %s", p.Amount, acct.CurrentOutstanding).
			With("available", acct.CurrentOutstanding.String()).
			With("requested", p.Amount.String())
	}

	next := *acct
	next.CurrentOutstanding = acct.CurrentOutstanding.Sub(p.Amount)
	if next.CurrentOutstanding.IsZero() {
		next.Status = models.AccountStatusCleared
	}
	next.UpdatedAt = now

	event := &models.PaymentEvent{
		AccountID:       acct.ID,
		Amount:          p.Amount,
		Method:          strings.TrimSpace(p.Method),
		AppliedAt:       now,
		AppliedBy:       p.Actor,
		PreviousBalance: acct.CurrentOutstanding,
		NewBalance:      next.CurrentOutstanding,
		IdempotencyKey:  p.IdempotencyKey,
	}
	return &next, event, nil
}

// Open builds a new active account.
func Open(in models.OpenAccountInput, now time.Time) (*models.BalanceAccount, error) {
	if !in.Kind.Valid() {
		return nil, apperr.Validation("unknown account kind %q", in.Kind)
	}
	if strings.TrimSpace(in.OwnerName) == "" {
		return nil, apperr.Validation("owner name is required")
	}
	if !in.OpeningAmount.IsPositive() {
		return nil, apperr.Validation("opening amount must be greater than zero")
	}
	return &models.BalanceAccount{
		Kind:               in.Kind,
		OwnerName:          strings.TrimSpace(in.OwnerName),
		OpeningAmount:      in.OpeningAmount,
		CurrentOutstanding: in.OpeningAmount,
		Status:             models.AccountStatusActive,
		IssuedAt:           now,
		SourceRequestID:    in.SourceRequestID,
		Version:            1,
		UpdatedAt:          now,
	}, nil
}
