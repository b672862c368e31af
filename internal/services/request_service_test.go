package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

func TestSubmitChoosesTableByType(t *testing.T) {
	h := newHarness(t)

	w := h.submit(t, models.RequestTypeWithdrawal, 900,
		map[string]string{"account_name": "Petty cash", "reason": "Float"}, false, "carol")
	assert.Equal(t, models.RequestKindWithdrawal, w.Kind)
	assert.Equal(t, models.PriorityMedium, w.Priority)
	assert.Equal(t, models.StatusPending, w.Status)
	assert.Equal(t, "carol", w.RequestedBy)

	c := h.submit(t, models.RequestTypeCashRequisition, 100, cashDetails(), true, "carol")
	assert.Equal(t, models.RequestKindApproval, c.Kind)
	assert.True(t, c.RequiresThreeApprovals)

	listed, err := h.Requests.List(context.Background(), models.RequestKindWithdrawal, models.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Contains(t, h.notifier.types(), "request.created")
}

func TestSubmitValidation(t *testing.T) {
	valid := json.RawMessage(`{"purpose":"Fuel"}`)
	tests := []struct {
		name string
		in   models.SubmitRequestInput
	}{
		{"unknown type", models.SubmitRequestInput{Type: "Bonus", Title: "x", Details: valid}},
		{"missing title", models.SubmitRequestInput{Type: models.RequestTypeCashRequisition, Details: valid}},
		{"negative amount", models.SubmitRequestInput{Type: models.RequestTypeCashRequisition, Title: "x", Amount: decimal.NewFromInt(-1), Details: valid}},
		{"bad priority", models.SubmitRequestInput{Type: models.RequestTypeCashRequisition, Title: "x", Priority: "Whenever", Details: valid}},
		{"missing details", models.SubmitRequestInput{Type: models.RequestTypeCashRequisition, Title: "x"}},
		{"unknown detail field", models.SubmitRequestInput{Type: models.RequestTypeCashRequisition, Title: "x", Details: json.RawMessage(`{"purpose":"Fuel","extra":1}`)}},
		{"wrong detail shape", models.SubmitRequestInput{Type: models.RequestTypeLeave, Title: "x", Details: valid}},
		{"free supplier advance", models.SubmitRequestInput{Type: models.RequestTypeSupplierAdvance, Title: "x", Details: json.RawMessage(`{"supplier_name":"Hill"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.Requests.Submit(context.Background(), tt.in, Actor{Name: "carol", Role: "employee"})
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Empty(t, h.requests.rows)
		})
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	_, err := h.Requests.List(context.Background(), models.RequestKindApproval, models.RequestFilter{Status: "Lost"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
