// Package workflow holds the approval state machine. Everything here is a
// pure function of (current request, decision); persistence lives in services.
package workflow

import "coffee-backend/internal/models"

// Flow is the ordered list of stages a request must pass.
type Flow []models.Stage

var (
	TwoStageFlow   = Flow{models.StageFinance, models.StageAdmin}
	ThreeStageFlow = Flow{models.StageFinance, models.StageAdmin1, models.StageAdmin2}
)

// FlowFor returns the flow fixed at creation by RequiresThreeApprovals.
func FlowFor(req *models.ApprovalRequest) Flow {
	if req.RequiresThreeApprovals {
		return ThreeStageFlow
	}
	return TwoStageFlow
}

// Index returns the position of stage in f, or -1.
func (f Flow) Index(stage models.Stage) int {
	for i, s := range f {
		if s == stage {
			return i
		}
	}
	return -1
}

func (f Flow) Final() models.Stage {
	return f[len(f)-1]
}

// Status derives the request status from the stage flags.
func (f Flow) Status(req *models.ApprovalRequest) models.RequestStatus {
	approved := 0
	for _, s := range f {
		if !req.StageState(s).IsApproved() {
			break
		}
		approved++
	}

	switch {
	case approved == len(f):
		return models.StatusApproved
	case approved >= 2 && len(f) == 3:
		return models.StatusAdmin1Approved
	case approved >= 1:
		return models.StatusFinanceApproved
	default:
		return models.StatusPending
	}
}
