package workflow

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
	"coffee-backend/internal/validation"
)

// Details is the typed payload of a request. Each request type has exactly one implementation.
type Details interface {
	RequestType() models.RequestType
}

type SalaryDetails struct {
	EmployeeName string `json:"employee_name" validate:"required,max=200"`
	Period       string `json:"period" validate:"required,datetime=2006-01"`
	Notes        string `json:"notes,omitempty" validate:"max=500"`
}

type CashRequisitionDetails struct {
	Purpose  string `json:"purpose" validate:"required,max=500"`
	NeededBy string `json:"needed_by,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type PersonalExpenseDetails struct {
	Category   string `json:"category" validate:"required,max=100"`
	ReceiptRef string `json:"receipt_ref,omitempty" validate:"max=200"`
}

type UserRegistrationDetails struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty" validate:"max=20"`
	Role  string `json:"role" validate:"required,oneof=employee finance admin"`
}

type LeaveDetails struct {
	LeaveType string `json:"leave_type" validate:"required,oneof=annual sick unpaid other"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type PriceApprovalDetails struct {
	CommodityType string          `json:"commodity_type" validate:"required,max=50"`
	SupplierName  string          `json:"supplier_name" validate:"required,max=200"`
	PricePerKg    decimal.Decimal `json:"price_per_kg"`
}

type SupplierAdvanceDetails struct {
	SupplierName string `json:"supplier_name" validate:"required,max=200"`
	Terms        string `json:"terms,omitempty" validate:"max=500"`
}

type MoneyRequestDetails struct {
	Payee   string `json:"payee" validate:"required,max=200"`
	Purpose string `json:"purpose" validate:"required,max=500"`
}

type WithdrawalDetails struct {
	AccountName string `json:"account_name" validate:"required,max=200"`
	Reason      string `json:"reason" validate:"required,max=500"`
}

func (SalaryDetails) RequestType() models.RequestType           { return models.RequestTypeSalary }
func (CashRequisitionDetails) RequestType() models.RequestType  { return models.RequestTypeCashRequisition }
func (PersonalExpenseDetails) RequestType() models.RequestType  { return models.RequestTypePersonalExpense }
func (UserRegistrationDetails) RequestType() models.RequestType { return models.RequestTypeUserRegistration }
func (LeaveDetails) RequestType() models.RequestType            { return models.RequestTypeLeave }
func (PriceApprovalDetails) RequestType() models.RequestType    { return models.RequestTypePriceApproval }
func (SupplierAdvanceDetails) RequestType() models.RequestType  { return models.RequestTypeSupplierAdvance }
func (MoneyRequestDetails) RequestType() models.RequestType     { return models.RequestTypeMoney }
func (WithdrawalDetails) RequestType() models.RequestType       { return models.RequestTypeWithdrawal }

func newDetails(t models.RequestType) (Details, bool) {
	switch t {
	case models.RequestTypeSalary:
		return &SalaryDetails{}, true
	case models.RequestTypeCashRequisition:
		return &CashRequisitionDetails{}, true
	case models.RequestTypePersonalExpense:
		return &PersonalExpenseDetails{}, true
	case models.RequestTypeUserRegistration:
		return &UserRegistrationDetails{}, true
	case models.RequestTypeLeave:
		return &LeaveDetails{}, true
	case models.RequestTypePriceApproval:
		return &PriceApprovalDetails{}, true
	case models.RequestTypeSupplierAdvance:
		return &SupplierAdvanceDetails{}, true
	case models.RequestTypeMoney:
		return &MoneyRequestDetails{}, true
	case models.RequestTypeWithdrawal:
		return &WithdrawalDetails{}, true
	}
	return nil, false
}

// DecodeDetails parses and validates raw as the payload of type t. Unknown
// fields are refused. The returned bytes are the normalized encoding to store.
func DecodeDetails(t models.RequestType, raw json.RawMessage) (Details, json.RawMessage, error) {
	d, ok := newDetails(t)
	if !ok {
		return nil, nil, apperr.Validation("unknown request type %q", t)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil, apperr.Validation("details are required for %s", t)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(d); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindValidation, err, "invalid details for %s", t)
	}
	if err := validation.Struct(d); err != nil {
		return nil, nil, err
	}
	switch v := d.(type) {
	case *PriceApprovalDetails:
		if !v.PricePerKg.IsPositive() {
			return nil, nil, apperr.Validation("price_per_kg must be greater than zero")
		}
	case *LeaveDetails:
		// Both dates are YYYY-MM-DD, so string order is date order.
		if v.EndDate < v.StartDate {
			return nil, nil, apperr.Validation("end_date must not be before start_date")
		}
	}

	normalized, err := json.Marshal(d)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "encode details")
	}
	return d, normalized, nil
}

// ParseDetails decodes stored details without re-validating them.
func ParseDetails(t models.RequestType, raw json.RawMessage) (Details, error) {
	d, ok := newDetails(t)
	if !ok {
		return nil, apperr.Validation("unknown request type %q", t)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "decode stored details for %s", t)
	}
	return d, nil
}
