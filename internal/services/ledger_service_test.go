package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func openAdvance(t *testing.T, h *harness, amount int64) *models.BalanceAccount {
	t.Helper()
	acct, err := h.Ledger.OpenAccount(context.Background(), models.OpenAccountInput{
		Kind:          models.AccountKindSupplierAdvance,
		OwnerName:     "Hill Estate",
		OpeningAmount: money(amount),
	}, "bob")
	require.NoError(t, err)
	return acct
}

func pay(h *harness, id int64, amount int64, key string) (*models.PaymentResult, error) {
	return h.Ledger.ApplyPayment(context.Background(), id, models.ApplyPaymentInput{
		Amount:         money(amount),
		Method:         "bank_transfer",
		IdempotencyKey: key,
	}, "bob")
}

func TestLedgerClearingScenario(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 10000)
	assert.Equal(t, models.AccountStatusActive, acct.Status)
	assert.True(t, acct.CurrentOutstanding.Equal(money(10000)))

	r, err := pay(h, acct.ID, 4000, "k1")
	require.NoError(t, err)
	assert.True(t, r.NewOutstanding.Equal(money(6000)))
	assert.Equal(t, models.AccountStatusActive, r.Status)

	_, err = pay(h, acct.ID, 7000, "k2")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
	e, _ := apperr.As(err)
	assert.Equal(t, "6000", e.Details["available"])

	r, err = pay(h, acct.ID, 6000, "k3")
	require.NoError(t, err)
	assert.True(t, r.NewOutstanding.IsZero())
	assert.Equal(t, models.AccountStatusCleared, r.Status)

	payments, err := h.Ledger.ListPayments(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.True(t, payments[1].PreviousBalance.Equal(money(6000)))

	_, err = pay(h, acct.ID, 1, "k4")
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance, "a cleared account takes no more payments")

	assert.Len(t, h.docs.finance, 2)
	assert.Len(t, h.docs.tasks, 2)
}

func TestPaymentReplayDeductsOnce(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 10000)

	first, err := pay(h, acct.ID, 2500, "same-key")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// Drop the cache so the replay comes from the relational store.
	h.cache.data = nil
	second, err := pay(h, acct.ID, 2500, "same-key")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.EventID, second.EventID)
	assert.True(t, second.NewOutstanding.Equal(money(7500)))

	third, err := pay(h, acct.ID, 2500, "same-key")
	require.NoError(t, err)
	assert.True(t, third.Replayed)

	stored, _ := h.Ledger.Get(context.Background(), acct.ID)
	assert.True(t, stored.CurrentOutstanding.Equal(money(7500)))
	assert.Len(t, h.accounts.payments, 1)
}

func TestPaymentKeyCannotMoveAccounts(t *testing.T) {
	h := newHarness(t)
	a := openAdvance(t, h, 1000)
	b := openAdvance(t, h, 1000)

	_, err := pay(h, a.ID, 100, "shared")
	require.NoError(t, err)
	h.cache.data = nil

	_, err = pay(h, b.ID, 100, "shared")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConcurrentSameKeyResolvesToReplay(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 1000)

	// Another writer commits the same key between our read and our write.
	h.accounts.raceKey = func(next *models.BalanceAccount, event *models.PaymentEvent) {
		winner := *next
		ev := *event
		h.accounts.commitDirect(&winner, &ev)
	}

	r, err := pay(h, acct.ID, 300, "racy")
	require.NoError(t, err)
	assert.True(t, r.Replayed)
	assert.True(t, r.NewOutstanding.Equal(money(700)))
	assert.Len(t, h.accounts.payments, 1)
}

func TestPaymentRetriesConflicts(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 1000)
	h.accounts.conflicts = 2

	r, err := pay(h, acct.ID, 100, "k")
	require.NoError(t, err)
	assert.True(t, r.NewOutstanding.Equal(money(900)))
}

func TestPaymentSurvivesDocumentStoreOutage(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 1000)
	h.docs.setFail("finance_transactions", true)
	h.docs.setFail("daily_tasks", true)

	r, err := pay(h, acct.ID, 100, "k")
	require.NoError(t, err)
	assert.True(t, r.NewOutstanding.Equal(money(900)))
	assert.Equal(t, 2, h.logs.FilterMessage("auxiliary write failed").Len())
}

func TestPaymentValidation(t *testing.T) {
	h := newHarness(t)
	acct := openAdvance(t, h, 1000)

	tests := []struct {
		name string
		in   models.ApplyPaymentInput
	}{
		{"zero amount", models.ApplyPaymentInput{Amount: money(0), Method: "cash", IdempotencyKey: "a"}},
		{"negative amount", models.ApplyPaymentInput{Amount: money(-5), Method: "cash", IdempotencyKey: "b"}},
		{"no method", models.ApplyPaymentInput{Amount: money(5), IdempotencyKey: "c"}},
		{"no key", models.ApplyPaymentInput{Amount: money(5), Method: "cash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Ledger.ApplyPayment(context.Background(), acct.ID, tt.in, "bob")
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	assert.Empty(t, h.accounts.payments)

	_, err := pay(h, 999, 1, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestOpenAccountForSourceRequestIsIdempotent(t *testing.T) {
	h := newHarness(t)
	src := int64(42)
	in := models.OpenAccountInput{
		Kind:            models.AccountKindSupplierAdvance,
		OwnerName:       "Hill Estate",
		OpeningAmount:   money(5000),
		SourceRequestID: &src,
	}

	a, err := h.Ledger.OpenAccount(context.Background(), in, "alice")
	require.NoError(t, err)
	b, err := h.Ledger.OpenAccount(context.Background(), in, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, h.accounts.accounts, 1)
}
