package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindSupplierAdvance AccountKind = "SupplierAdvance"
	AccountKindMillingCustomer AccountKind = "MillingCustomer"
)

func (k AccountKind) Valid() bool {
	return k == AccountKindSupplierAdvance || k == AccountKindMillingCustomer
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "Active"
	AccountStatusCleared AccountStatus = "Cleared"
)

// BalanceAccount tracks an advance or credit that is cleared by payments.
type BalanceAccount struct {
	ID                 int64           `json:"id"`
	Kind               AccountKind     `json:"kind"`
	OwnerName          string          `json:"owner_name"`
	OpeningAmount      decimal.Decimal `json:"opening_amount"`
	CurrentOutstanding decimal.Decimal `json:"current_outstanding"`
	Status             AccountStatus   `json:"status"`
	IssuedAt           time.Time       `json:"issued_at"`
	SourceRequestID    *int64          `json:"source_request_id,omitempty"`
	Version            int             `json:"version"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// PaymentEvent is the audit record of one applied payment.
type PaymentEvent struct {
	ID              int64           `json:"id"`
	AccountID       int64           `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	AppliedAt       time.Time       `json:"applied_at"`
	AppliedBy       string          `json:"applied_by"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	IdempotencyKey  string          `json:"idempotency_key"`
}

type OpenAccountInput struct {
	Kind            AccountKind     `json:"kind" validate:"required"`
	OwnerName       string          `json:"owner_name" validate:"required,max=200"`
	OpeningAmount   decimal.Decimal `json:"opening_amount"`
	SourceRequestID *int64          `json:"source_request_id,omitempty"`
}

type ApplyPaymentInput struct {
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method" validate:"required,max=50"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// PaymentResult is what applyPayment returns, and what a replay returns again.
type PaymentResult struct {
	AccountID      int64           `json:"account_id"`
	EventID        int64           `json:"event_id"`
	NewOutstanding decimal.Decimal `json:"new_outstanding"`
	Status         AccountStatus   `json:"status"`
	IdempotencyKey string          `json:"idempotency_key"`
	Replayed       bool            `json:"replayed"`
}
