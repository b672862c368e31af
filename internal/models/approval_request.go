package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type RequestType string

const (
	RequestTypeSalary           RequestType = "SalaryRequest"
	RequestTypeCashRequisition  RequestType = "CashRequisition"
	RequestTypePersonalExpense  RequestType = "PersonalExpense"
	RequestTypeUserRegistration RequestType = "UserRegistration"
	RequestTypeLeave            RequestType = "LeaveRequest"
	RequestTypePriceApproval    RequestType = "PriceApproval"
	RequestTypeSupplierAdvance  RequestType = "SupplierAdvance"
	RequestTypeMoney            RequestType = "MoneyRequest"
	RequestTypeWithdrawal       RequestType = "WithdrawalRequest"
)

// AllRequestTypes lists every type accepted by submit.
var AllRequestTypes = []RequestType{
	RequestTypeSalary,
	RequestTypeCashRequisition,
	RequestTypePersonalExpense,
	RequestTypeUserRegistration,
	RequestTypeLeave,
	RequestTypePriceApproval,
	RequestTypeSupplierAdvance,
	RequestTypeMoney,
	RequestTypeWithdrawal,
}

func (t RequestType) Valid() bool {
	for _, known := range AllRequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RequestKind selects the table a request lives in.
type RequestKind string

const (
	RequestKindApproval   RequestKind = "approval"
	RequestKindMoney      RequestKind = "money"
	RequestKindWithdrawal RequestKind = "withdrawal"
)

func KindForType(t RequestType) RequestKind {
	switch t {
	case RequestTypeMoney:
		return RequestKindMoney
	case RequestTypeWithdrawal:
		return RequestKindWithdrawal
	default:
		return RequestKindApproval
	}
}

func ParseRequestKind(s string) (RequestKind, bool) {
	switch RequestKind(s) {
	case RequestKindApproval, RequestKindMoney, RequestKindWithdrawal:
		return RequestKind(s), true
	}
	return "", false
}

// Table returns the relational table backing this kind.
func (k RequestKind) Table() string {
	switch k {
	case RequestKindMoney:
		return "money_requests"
	case RequestKindWithdrawal:
		return "withdrawal_requests"
	default:
		return "approval_requests"
	}
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusPending         RequestStatus = "Pending"
	StatusFinanceApproved RequestStatus = "FinanceApproved"
	StatusAdmin1Approved  RequestStatus = "Admin1Approved"
	StatusApproved        RequestStatus = "Approved"
	StatusRejected        RequestStatus = "Rejected"
)

func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Stage string

const (
	StageFinance Stage = "finance"
	StageAdmin   Stage = "admin"
	StageAdmin1  Stage = "admin1"
	StageAdmin2  Stage = "admin2"
)

func (s Stage) Valid() bool {
	switch s {
	case StageFinance, StageAdmin, StageAdmin1, StageAdmin2:
		return true
	}
	return false
}

// StageApproval is the per-stage sub-state. All fields stay nil until a reviewer acts.
type StageApproval struct {
	Approved   *bool      `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at"`
	ApprovedBy *string    `json:"approved_by"`
}

func (s StageApproval) IsApproved() bool {
	return s.Approved != nil && *s.Approved && s.ApprovedAt != nil
}

type ApprovalRequest struct {
	ID                     int64           `json:"id"`
	Kind                   RequestKind     `json:"kind"`
	Type                   RequestType     `json:"type"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	RequestedBy            string          `json:"requested_by"`
	RequestedAt            time.Time       `json:"requested_at"`
	Priority               Priority        `json:"priority"`
	Status                 RequestStatus   `json:"status"`
	Details                json.RawMessage `json:"details,omitempty"`
	RequiresThreeApprovals bool            `json:"requires_three_approvals"`

	Finance StageApproval `json:"finance"`
	Admin   StageApproval `json:"admin"`
	Admin1  StageApproval `json:"admin1"`
	Admin2  StageApproval `json:"admin2"`

	RejectionReason *string    `json:"rejection_reason"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectedBy      *string    `json:"rejected_by"`

	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageState returns a pointer to the sub-state of stage, or nil for an unknown stage.
func (r *ApprovalRequest) StageState(stage Stage) *StageApproval {
	switch stage {
	case StageFinance:
		return &r.Finance
	case StageAdmin:
		return &r.Admin
	case StageAdmin1:
		return &r.Admin1
	case StageAdmin2:
		return &r.Admin2
	}
	return nil
}

// Clone returns a deep copy so callers can compute a new state without touching the fresh read.
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	c := *r
	c.Details = append(json.RawMessage(nil), r.Details...)
	c.Finance = r.Finance.clone()
	c.Admin = r.Admin.clone()
	c.Admin1 = r.Admin1.clone()
	c.Admin2 = r.Admin2.clone()
	c.RejectionReason = cloneString(r.RejectionReason)
	c.RejectedAt = cloneTime(r.RejectedAt)
	c.RejectedBy = cloneString(r.RejectedBy)
	return &c
}

func (s StageApproval) clone() StageApproval {
	out := StageApproval{ApprovedAt: cloneTime(s.ApprovedAt), ApprovedBy: cloneString(s.ApprovedBy)}
	if s.Approved != nil {
		v := *s.Approved
		out.Approved = &v
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SubmitRequestInput is the boundary payload for creating a request.
type SubmitRequestInput struct {
	Type                   RequestType     `json:"type" validate:"required"`
	Title                  string          `json:"title" validate:"required,max=200"`
	Description            string          `json:"description" validate:"max=2000"`
	Amount                 decimal.Decimal `json:"amount"`
	Priority               Priority        `json:"priority"`
	Details                json.RawMessage `json:"details"`
	RequiresThreeApprovals bool            `json:"requires_three_approvals"`
}

// RecordApprovalInput is the reviewer action on a single stage.
type RecordApprovalInput struct {
	Stage    Stage  `json:"stage"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type RequestFilter struct {
	Status      RequestStatus
	Type        RequestType
	RequestedBy string
	Limit       int
}
