package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/validation"
	"coffee-backend/internal/workflow"
)

type RequestService struct {
	Repo     RequestStore
	Notifier Notifier
	Clock    timeutil.Clock
	log      *zap.Logger
}

func NewRequestService(repo RequestStore, notifier Notifier, log *zap.Logger) *RequestService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &RequestService{Repo: repo, Notifier: notifier, Clock: timeutil.System, log: orNop(log)}
}

// Submit validates in and stores a Pending request in the table its type belongs to.
func (s *RequestService) Submit(ctx context.Context, in models.SubmitRequestInput, actor Actor) (*models.ApprovalRequest, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, apperr.Validation("unknown request type %q", in.Type).With("type", in.Type)
	}
	if strings.TrimSpace(actor.Name) == "" {
		return nil, apperr.Validation("requester is required")
	}
	if in.Amount.IsNegative() {
		return nil, apperr.Validation("amount cannot be negative").With("amount", in.Amount.String())
	}
	// The approval effect opens an account for the full amount.
	if in.Type == models.RequestTypeSupplierAdvance && !in.Amount.IsPositive() {
		return nil, apperr.Validation("supplier advance amount must be greater than zero")
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation("unknown priority %q", in.Priority).With("priority", in.Priority)
	}

	_, details, err := workflow.DecodeDetails(in.Type, in.Details)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	req := &models.ApprovalRequest{
		Kind:                   models.KindForType(in.Type),
		Type:                   in.Type,
		Title:                  strings.TrimSpace(in.Title),
		Description:            strings.TrimSpace(in.Description),
		Amount:                 in.Amount,
		RequestedBy:            actor.Name,
		RequestedAt:            now,
		Priority:               priority,
		Status:                 models.StatusPending,
		Details:                details,
		RequiresThreeApprovals: in.RequiresThreeApprovals,
		Version:                1,
		UpdatedAt:              now,
	}
	if err := s.Repo.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info("request submitted",
		zap.Int64("request_id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("type", string(req.Type)),
		zap.String("requested_by", req.RequestedBy))
	s.Notifier.Notify("request.created", req.ID, req, actor.Name)
	return req, nil
}

func (s *RequestService) Get(ctx context.Context, kind models.RequestKind, id int64) (*models.ApprovalRequest, error) {
	return s.Repo.GetByID(ctx, kind, id)
}

func (s *RequestService) List(ctx context.Context, kind models.RequestKind, filter models.RequestFilter) ([]*models.ApprovalRequest, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.StatusPending, models.StatusFinanceApproved, models.StatusAdmin1Approved,
			models.StatusApproved, models.StatusRejected:
		default:
			return nil, apperr.Validation("unknown status %q", filter.Status)
		}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperr.Validation("unknown request type %q", filter.Type)
	}
	return s.Repo.List(ctx, kind, filter)
}
