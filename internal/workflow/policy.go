package workflow

import "coffee-backend/internal/models"

// Policy is the per-type configuration the state machine consults.
type Policy struct {
	// SelfApprovalForbidden lists the types where no stage may be approved by the requester.
	SelfApprovalForbidden map[models.RequestType]bool
	// StageRoles lists which actor roles may act on a stage. A stage with no entry is open to any role.
	StageRoles map[models.Stage][]string
}

// DefaultSelfApprovalTypes are the money-moving types.
var DefaultSelfApprovalTypes = []models.RequestType{
	models.RequestTypeSalary,
	models.RequestTypeCashRequisition,
	models.RequestTypePersonalExpense,
	models.RequestTypePriceApproval,
	models.RequestTypeSupplierAdvance,
	models.RequestTypeMoney,
	models.RequestTypeWithdrawal,
}

func DefaultStageRoles() map[models.Stage][]string {
	return map[models.Stage][]string{
		models.StageFinance: {"finance", "admin"},
		models.StageAdmin:   {"admin"},
		models.StageAdmin1:  {"admin"},
		models.StageAdmin2:  {"admin"},
	}
}

func DefaultPolicy() Policy {
	return NewPolicy(DefaultSelfApprovalTypes)
}

// NewPolicy builds a policy with the default stage roles and the given self-approval list.
func NewPolicy(selfApproval []models.RequestType) Policy {
	p := Policy{
		SelfApprovalForbidden: make(map[models.RequestType]bool, len(selfApproval)),
		StageRoles:            DefaultStageRoles(),
	}
	for _, t := range selfApproval {
		p.SelfApprovalForbidden[t] = true
	}
	return p
}

func (p Policy) forbidsSelfApproval(t models.RequestType) bool {
	return p.SelfApprovalForbidden[t]
}

// RoleAllowed reports whether role may act on stage.
func (p Policy) RoleAllowed(stage models.Stage, role string) bool {
	roles, ok := p.StageRoles[stage]
	if !ok || len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
