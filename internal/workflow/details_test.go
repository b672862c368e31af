package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

func TestDecodeDetails(t *testing.T) {
	tests := []struct {
		name    string
		typ     models.RequestType
		raw     string
		wantErr bool
	}{
		{"salary", models.RequestTypeSalary, `{"employee_name":"Asha","period":"2025-02"}`, false},
		{"salary bad period", models.RequestTypeSalary, `{"employee_name":"Asha","period":"Feb"}`, true},
		{"registration", models.RequestTypeUserRegistration, `{"name":"Ravi","email":"ravi@example.com","role":"finance"}`, false},
		{"registration bad role", models.RequestTypeUserRegistration, `{"name":"Ravi","email":"ravi@example.com","role":"owner"}`, true},
		{"leave", models.RequestTypeLeave, `{"leave_type":"sick","start_date":"2025-03-01","end_date":"2025-03-03"}`, false},
		{"leave reversed", models.RequestTypeLeave, `{"leave_type":"sick","start_date":"2025-03-05","end_date":"2025-03-03"}`, true},
		{"price", models.RequestTypePriceApproval, `{"commodity_type":"Arabica","supplier_name":"Hill Estate","price_per_kg":"412.50"}`, false},
		{"price zero", models.RequestTypePriceApproval, `{"commodity_type":"Arabica","supplier_name":"Hill Estate","price_per_kg":"0"}`, true},
		{"unknown field", models.RequestTypeMoney, `{"payee":"Depot","purpose":"diesel","extra":1}`, true},
		{"empty", models.RequestTypeWithdrawal, ``, true},
		{"unknown type", "Bonus", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, normalized, err := DecodeDetails(tt.typ, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.typ, d.RequestType())
			assert.NotEmpty(t, normalized)
		})
	}
}

func TestParseDetailsRoundTrip(t *testing.T) {
	_, raw, err := DecodeDetails(models.RequestTypeSupplierAdvance, json.RawMessage(`{"supplier_name":"Hill Estate"}`))
	require.NoError(t, err)

	d, err := ParseDetails(models.RequestTypeSupplierAdvance, raw)
	require.NoError(t, err)
	sa, ok := d.(*SupplierAdvanceDetails)
	require.True(t, ok)
	assert.Equal(t, "Hill Estate", sa.SupplierName)
}
