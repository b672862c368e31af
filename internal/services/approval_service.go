package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coffee-backend/internal/metrics"
	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/workflow"
)

// Dispatcher delivers an outbox event right after the transaction that wrote it.
type Dispatcher interface {
	Deliver(ctx context.Context, event *models.OutboxEvent) bool
}

type ApprovalService struct {
	Requests        RequestStore
	Documents       DocumentStore
	Dispatcher      Dispatcher
	Notifier        Notifier
	Policy          workflow.Policy
	Clock           timeutil.Clock
	ConflictRetries int
	log             *zap.Logger
}

func NewApprovalService(requests RequestStore, documents DocumentStore, dispatcher Dispatcher, notifier Notifier,
	policy workflow.Policy, conflictRetries int, log *zap.Logger) *ApprovalService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ApprovalService{
		Requests:        requests,
		Documents:       documents,
		Dispatcher:      dispatcher,
		Notifier:        notifier,
		Policy:          policy,
		Clock:           timeutil.System,
		ConflictRetries: conflictRetries,
		log:             orNop(log),
	}
}

// RecordApproval applies one reviewer decision to the request. Every attempt
// starts from a fresh read, and the write only lands if nobody else wrote in
// between. The transition into Approved also queues the request's effect.
func (s *ApprovalService) RecordApproval(ctx context.Context, kind models.RequestKind, id int64, in models.RecordApprovalInput, actor Actor) (*models.ApprovalRequest, error) {
	decision := workflow.Decision{
		Stage:     in.Stage,
		Approved:  in.Approved,
		Actor:     actor.Name,
		ActorRole: actor.Role,
		Reason:    in.Reason,
	}
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	var (
		updated *models.ApprovalRequest
		outcome workflow.Outcome
		event   *models.OutboxEvent
	)
	err := retryOnConflict(ctx, s.ConflictRetries, "record_approval", s.log, func() error {
		current, err := s.Requests.GetByID(ctx, kind, id)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		next, out, err := workflow.Apply(current, decision, s.Policy, now)
		if err != nil {
			return err
		}
		next.UpdatedAt = now

		var pending *models.OutboxEvent
		if out.BecameApproved {
			if pending, err = approvedEvent(next, actor.Name, now); err != nil {
				return err
			}
		}
		if err := s.Requests.UpdateStages(ctx, next, current.Version, pending); err != nil {
			return err
		}
		updated, outcome, event = next, out, pending
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ApprovalTransitions.WithLabelValues(string(in.Stage), string(outcome.To)).Inc()
	s.log.Info("approval recorded",
		zap.Int64("request_id", id),
		zap.String("kind", string(kind)),
		zap.String("stage", string(in.Stage)),
		zap.Bool("approved", in.Approved),
		zap.String("actor", actor.Name),
		zap.String("from", string(outcome.From)),
		zap.String("to", string(outcome.To)))

	s.audit(ctx, updated, in, actor, outcome)
	s.Notifier.Notify("request.updated", updated.ID, updated, actor.Name)

	if event != nil && s.Dispatcher != nil {
		s.Dispatcher.Deliver(ctx, event)
	}
	return updated, nil
}

func (s *ApprovalService) audit(ctx context.Context, req *models.ApprovalRequest, in models.RecordApprovalInput, actor Actor, outcome workflow.Outcome) {
	if s.Documents == nil {
		return
	}
	doc := &models.ApprovalAudit{
		ID:         fmt.Sprintf("%s:%d:v%d", req.Kind, req.ID, req.Version),
		RequestID:  req.ID,
		Kind:       req.Kind,
		Stage:      in.Stage,
		Approved:   in.Approved,
		Actor:      actor.Name,
		Reason:     in.Reason,
		FromStatus: outcome.From,
		ToStatus:   outcome.To,
		Version:    req.Version,
		At:         req.UpdatedAt,
	}
	if err := s.Documents.InsertApprovalAudit(ctx, doc); err != nil {
		auxFailed(s.log, "approval_audit", err, zap.Int64("request_id", req.ID), zap.String("audit_id", doc.ID))
	}
}

func approvedEvent(req *models.ApprovalRequest, actor string, now time.Time) (*models.OutboxEvent, error) {
	final := workflow.FlowFor(req).Final()
	payload, err := json.Marshal(models.RequestApprovedPayload{
		RequestID:     req.ID,
		Kind:          req.Kind,
		Type:          req.Type,
		ApprovedAt:    *req.StageState(final).ApprovedAt,
		FinalApprover: actor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode approval event: %w", err)
	}
	return &models.OutboxEvent{
		EventType:     models.EventRequestApproved,
		AggregateKind: string(req.Kind),
		AggregateID:   req.ID,
		Payload:       payload,
		Status:        models.OutboxStatusPending,
		CreatedAt:     now,
	}, nil
}
