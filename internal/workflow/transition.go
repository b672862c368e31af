package workflow

import (
	"strings"
	"time"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

// Decision is one reviewer action against one stage.
type Decision struct {
	Stage     models.Stage
	Approved  bool
	Actor     string
	ActorRole string
	Reason    string
}

// Outcome summarises what a transition did.
type Outcome struct {
	From models.RequestStatus
	To   models.RequestStatus
	// BecameApproved is true only on the transition into Approved.
	BecameApproved bool
}

// Validate checks the decision shape. It needs no stored state.
func (d Decision) Validate() error {
	if !d.Stage.Valid() {
		return apperr.Validation("unknown stage %q", d.Stage).With("stage", d.Stage)
	}
	if strings.TrimSpace(d.Actor) == "" {
		return apperr.Validation("actor is required")
	}
	if !d.Approved && strings.TrimSpace(d.Reason) == "" {
		return apperr.Validation("rejection reason is required")
	}
	return nil
}

// Apply evaluates d against req and returns the next state. req is not modified;
// on any error no new state is produced.
func Apply(req *models.ApprovalRequest, d Decision, p Policy, now time.Time) (*models.ApprovalRequest, Outcome, error) {
	if err := d.Validate(); err != nil {
		return nil, Outcome{}, err
	}

	if req.Status.Terminal() {
		return nil, Outcome{}, apperr.New(apperr.KindTerminalState,
			"request %d is already %s", req.ID, req.Status).With("status", req.Status)
	}

	flow := FlowFor(req)
	idx := flow.Index(d.Stage)
	if idx < 0 {
		return nil, Outcome{}, apperr.Validation("stage %s is not part of this request's approval flow", d.Stage).
			With("stage", d.Stage).
			With("flow", flow)
	}

	if !p.RoleAllowed(d.Stage, d.ActorRole) {
		return nil, Outcome{}, apperr.Forbidden("role %q cannot act on the %s stage", d.ActorRole, d.Stage)
	}

	next := req.Clone()
	outcome := Outcome{From: req.Status}

	if d.Approved {
		if err := approve(next, flow, idx, d, p, now); err != nil {
			return nil, Outcome{}, err
		}
		next.Status = flow.Status(next)
	} else {
		reject(next, d, now)
	}

	outcome.To = next.Status
	outcome.BecameApproved = next.Status == models.StatusApproved
	return next, outcome, nil
}

func approve(req *models.ApprovalRequest, flow Flow, idx int, d Decision, p Policy, now time.Time) error {
	for _, prior := range flow[:idx] {
		if !req.StageState(prior).IsApproved() {
			return apperr.New(apperr.KindApprovalOrder,
				"%s approval is required before %s", prior, d.Stage).
				With("missingStage", prior).
				With("stage", d.Stage)
		}
	}

	state := req.StageState(d.Stage)
	if state.IsApproved() {
		return apperr.Validation("stage %s is already approved", d.Stage).With("stage", d.Stage)
	}

	if p.forbidsSelfApproval(req.Type) && d.Actor == req.RequestedBy {
		return apperr.Forbidden("you cannot approve your own %s", req.Type)
	}

	at := now
	if idx > 0 {
		// Stage timestamps must be strictly increasing along the flow.
		prev := *req.StageState(flow[idx-1]).ApprovedAt
		if !at.After(prev) {
			at = prev.Add(time.Microsecond)
		}
	}

	approved := true
	actor := d.Actor
	state.Approved = &approved
	state.ApprovedAt = &at
	state.ApprovedBy = &actor
	return nil
}

// reject is terminal. Only the rejected stage is cleared; earlier approvals stay on record.
func reject(req *models.ApprovalRequest, d Decision, now time.Time) {
	state := req.StageState(d.Stage)
	notApproved := false
	state.Approved = &notApproved
	state.ApprovedAt = nil
	state.ApprovedBy = nil

	reason := strings.TrimSpace(d.Reason)
	actor := d.Actor
	at := now
	req.Status = models.StatusRejected
	req.RejectionReason = &reason
	req.RejectedAt = &at
	req.RejectedBy = &actor
}
