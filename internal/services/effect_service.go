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

// EffectService carries out what an approved request causes: opening an
// advance account, registering an employee, or recording a finance
// transaction or daily task. Effects come from outbox rows and are safe to
// run more than once.
type EffectService struct {
	Requests    RequestStore
	Ledger      *LedgerService
	Employees   *EmployeeSyncService
	Documents   DocumentStore
	Outbox      OutboxStore
	Clock       timeutil.Clock
	BatchSize   int
	MaxAttempts int
	log         *zap.Logger
}

func NewEffectService(requests RequestStore, ledger *LedgerService, employees *EmployeeSyncService,
	documents DocumentStore, outbox OutboxStore, batchSize, maxAttempts int, log *zap.Logger) *EffectService {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &EffectService{
		Requests:    requests,
		Ledger:      ledger,
		Employees:   employees,
		Documents:   documents,
		Outbox:      outbox,
		Clock:       timeutil.System,
		BatchSize:   batchSize,
		MaxAttempts: maxAttempts,
		log:         orNop(log),
	}
}

// Deliver executes event and records the result on its outbox row. A failed
// effect stays in the outbox for the next redelivery.
func (s *EffectService) Deliver(ctx context.Context, event *models.OutboxEvent) bool {
	log := s.log.With(zap.Int64("outbox_id", event.ID), zap.String("event_type", event.EventType),
		zap.String("aggregate_kind", event.AggregateKind), zap.Int64("aggregate_id", event.AggregateID))

	if err := s.Execute(ctx, event); err != nil {
		metrics.OutboxDeliveries.WithLabelValues("failed").Inc()
		log.Warn("effect failed, will redeliver", zap.Int("attempts", event.Attempts+1), zap.Error(err))
		if markErr := s.Outbox.MarkFailed(ctx, event.ID, err.Error(), s.MaxAttempts); markErr != nil {
			log.Error("failed to record effect failure", zap.Error(markErr))
		}
		return false
	}

	metrics.OutboxDeliveries.WithLabelValues("delivered").Inc()
	if err := s.Outbox.MarkSent(ctx, event.ID, s.Clock.Now()); err != nil {
		// The effect ran; a later redelivery repeats it harmlessly.
		log.Error("failed to mark outbox event sent", zap.Error(err))
	}
	log.Info("effect delivered")
	return true
}

// RedeliverPending retries undelivered outbox rows, oldest first.
func (s *EffectService) RedeliverPending(ctx context.Context) (models.RedeliverResult, error) {
	events, err := s.Outbox.ListPending(ctx, s.BatchSize)
	if err != nil {
		return models.RedeliverResult{}, err
	}
	var result models.RedeliverResult
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		if s.Deliver(ctx, event) {
			result.Delivered++
		} else {
			result.Failed++
		}
	}
	if result.Attempted > 0 {
		s.log.Info("outbox redelivery finished",
			zap.Int("attempted", result.Attempted),
			zap.Int("delivered", result.Delivered),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

// Run redelivers once immediately and then on every tick until ctx is done.
func (s *EffectService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.log.Info("outbox redelivery started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RedeliverPending(ctx); err != nil {
			s.log.Error("outbox redelivery failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("outbox redelivery stopped")
			return
		case <-ticker.C:
		}
	}
}

// Execute runs the effect of one outbox event without touching the outbox row.
func (s *EffectService) Execute(ctx context.Context, event *models.OutboxEvent) error {
	if event.EventType != models.EventRequestApproved {
		return fmt.Errorf("unknown outbox event type %q", event.EventType)
	}
	var payload models.RequestApprovedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.EventType, err)
	}

	req, err := s.Requests.GetByID(ctx, payload.Kind, payload.RequestID)
	if err != nil {
		return err
	}
	if req.Status != models.StatusApproved {
		return fmt.Errorf("request %d is %s, not Approved", req.ID, req.Status)
	}
	details, err := workflow.ParseDetails(req.Type, req.Details)
	if err != nil {
		return err
	}

	switch d := details.(type) {
	case *workflow.SupplierAdvanceDetails:
		id := req.ID
		_, err := s.Ledger.OpenAccount(ctx, models.OpenAccountInput{
			Kind:            models.AccountKindSupplierAdvance,
			OwnerName:       d.SupplierName,
			OpeningAmount:   req.Amount,
			SourceRequestID: &id,
		}, payload.FinalApprover)
		return err

	case *workflow.UserRegistrationDetails:
		id := req.ID
		_, err := s.Employees.Upsert(ctx, models.UpsertEmployeeInput{
			Name:            d.Name,
			Email:           d.Email,
			Phone:           d.Phone,
			Role:            d.Role,
			SourceRequestID: &id,
		})
		return err

	case *workflow.LeaveDetails, *workflow.PriceApprovalDetails:
		return s.Documents.UpsertDailyTask(ctx, &models.DailyTask{
			ID:          requestDocID(req),
			Title:       req.Title,
			Category:    string(req.Type),
			ReferenceID: req.ID,
			AssignedTo:  req.RequestedBy,
			CreatedAt:   payload.ApprovedAt,
		})

	default:
		return s.Documents.UpsertFinanceTransaction(ctx, &models.FinanceTransaction{
			ID:          requestDocID(req),
			Source:      "request",
			SourceID:    req.ID,
			Kind:        string(req.Type),
			Counterpart: counterpart(details, req.RequestedBy),
			Amount:      req.Amount.StringFixed(2),
			RecordedBy:  payload.FinalApprover,
			RecordedAt:  payload.ApprovedAt,
		})
	}
}

func requestDocID(req *models.ApprovalRequest) string {
	return fmt.Sprintf("request:%s:%d", req.Kind, req.ID)
}

// counterpart names who the money goes to.
func counterpart(d workflow.Details, fallback string) string {
	switch v := d.(type) {
	case *workflow.SalaryDetails:
		return v.EmployeeName
	case *workflow.MoneyRequestDetails:
		return v.Payee
	case *workflow.WithdrawalDetails:
		return v.AccountName
	}
	return fallback
}
