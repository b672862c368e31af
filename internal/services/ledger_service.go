package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/ledger"
	"coffee-backend/internal/metrics"
	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/validation"
)

type LedgerService struct {
	Accounts        AccountStore
	Documents       DocumentStore
	Cache           PaymentCache
	Notifier        Notifier
	Clock           timeutil.Clock
	ConflictRetries int
	log             *zap.Logger
}

func NewLedgerService(accounts AccountStore, documents DocumentStore, cache PaymentCache, notifier Notifier,
	conflictRetries int, log *zap.Logger) *LedgerService {
	if cache == nil {
		cache = noopCache{}
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &LedgerService{
		Accounts:        accounts,
		Documents:       documents,
		Cache:           cache,
		Notifier:        notifier,
		Clock:           timeutil.System,
		ConflictRetries: conflictRetries,
		log:             orNop(log),
	}
}

// OpenAccount creates an Active account. An account opened for a source
// request is created once; later calls return the existing one.
func (s *LedgerService) OpenAccount(ctx context.Context, in models.OpenAccountInput, actor string) (*models.BalanceAccount, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	acct, err := ledger.Open(in, s.Clock.Now())
	if err != nil {
		return nil, err
	}
	created, err := s.Accounts.Create(ctx, acct)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("balance account opened",
			zap.Int64("account_id", acct.ID),
			zap.String("kind", string(acct.Kind)),
			zap.String("owner", acct.OwnerName),
			zap.String("opening_amount", acct.OpeningAmount.String()))
		s.Notifier.Notify("account.created", acct.ID, acct, actor)
	}
	return acct, nil
}

// ApplyPayment reduces the account's outstanding balance by in.Amount. A key
// that was already applied returns the original result and deducts nothing.
func (s *LedgerService) ApplyPayment(ctx context.Context, accountID int64, in models.ApplyPaymentInput, actor string) (*models.PaymentResult, error) {
	payment := ledger.Payment{
		Amount:         in.Amount,
		Method:         in.Method,
		Actor:          actor,
		IdempotencyKey: in.IdempotencyKey,
	}
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	if cached, ok := s.Cache.GetPayment(ctx, payment.IdempotencyKey); ok && cached.AccountID == accountID {
		metrics.PaymentsApplied.WithLabelValues("replayed").Inc()
		cached.Replayed = true
		return cached, nil
	}
	if result, err := s.replay(ctx, accountID, payment.IdempotencyKey); result != nil || err != nil {
		return result, err
	}

	var (
		account *models.BalanceAccount
		event   *models.PaymentEvent
	)
	err := retryOnConflict(ctx, s.ConflictRetries, "apply_payment", s.log, func() error {
		current, err := s.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		next, ev, err := ledger.Apply(current, payment, s.Clock.Now())
		if err != nil {
			return err
		}
		if err := s.Accounts.ApplyPayment(ctx, next, current.Version, ev); err != nil {
			return err
		}
		account, event = next, ev
		return nil
	})
	if errors.Is(err, apperr.ErrDuplicate) {
		// Lost a race with the same key.
		if result, rerr := s.replay(ctx, accountID, payment.IdempotencyKey); result != nil || rerr != nil {
			return result, rerr
		}
	}
	if err != nil {
		return nil, err
	}

	result := &models.PaymentResult{
		AccountID:      account.ID,
		EventID:        event.ID,
		NewOutstanding: account.CurrentOutstanding,
		Status:         account.Status,
		IdempotencyKey: event.IdempotencyKey,
	}
	metrics.PaymentsApplied.WithLabelValues("applied").Inc()
	s.log.Info("payment applied",
		zap.Int64("account_id", account.ID),
		zap.Int64("event_id", event.ID),
		zap.String("amount", event.Amount.String()),
		zap.String("outstanding", account.CurrentOutstanding.String()),
		zap.String("status", string(account.Status)),
		zap.String("actor", actor))

	s.recordAuxiliary(ctx, account, event)
	s.Cache.PutPayment(ctx, payment.IdempotencyKey, result)
	s.Notifier.Notify("account.updated", account.ID, account, actor)
	return result, nil
}

// replay returns the stored result for key, or nil when the key is unused.
func (s *LedgerService) replay(ctx context.Context, accountID int64, key string) (*models.PaymentResult, error) {
	event, err := s.Accounts.GetPaymentByKey(ctx, key)
	if err != nil || event == nil {
		return nil, err
	}
	if event.AccountID != accountID {
		return nil, apperr.Validation("idempotency key %s was already used for another account", key).
			With("accountId", event.AccountID)
	}

	status := models.AccountStatusActive
	if event.NewBalance.IsZero() {
		status = models.AccountStatusCleared
	}
	result := &models.PaymentResult{
		AccountID:      event.AccountID,
		EventID:        event.ID,
		NewOutstanding: event.NewBalance,
		Status:         status,
		IdempotencyKey: key,
		Replayed:       true,
	}
	metrics.PaymentsApplied.WithLabelValues("replayed").Inc()
	s.log.Debug("payment replayed", zap.Int64("account_id", accountID), zap.String("idempotency_key", key))
	return result, nil
}

func (s *LedgerService) recordAuxiliary(ctx context.Context, acct *models.BalanceAccount, event *models.PaymentEvent) {
	if s.Documents == nil {
		return
	}
	id := fmt.Sprintf("payment:%d", event.ID)

	txn := &models.FinanceTransaction{
		ID:          id,
		Source:      "payment",
		SourceID:    event.ID,
		Kind:        string(acct.Kind),
		Counterpart: acct.OwnerName,
		Amount:      event.Amount.StringFixed(2),
		Method:      event.Method,
		RecordedBy:  event.AppliedBy,
		RecordedAt:  event.AppliedAt,
	}
	if err := s.Documents.UpsertFinanceTransaction(ctx, txn); err != nil {
		auxFailed(s.log, "finance_transactions", err, zap.Int64("event_id", event.ID), zap.Int64("account_id", acct.ID))
	}

	task := &models.DailyTask{
		ID:          id,
		Title:       fmt.Sprintf("Reconcile %s payment of %s from %s", event.Method, event.Amount.StringFixed(2), acct.OwnerName),
		Category:    "payment_reconciliation",
		ReferenceID: event.ID,
		AssignedTo:  "finance",
		CreatedAt:   event.AppliedAt,
	}
	if err := s.Documents.UpsertDailyTask(ctx, task); err != nil {
		auxFailed(s.log, "daily_tasks", err, zap.Int64("event_id", event.ID), zap.Int64("account_id", acct.ID))
	}
}

func (s *LedgerService) Get(ctx context.Context, id int64) (*models.BalanceAccount, error) {
	return s.Accounts.GetByID(ctx, id)
}

func (s *LedgerService) List(ctx context.Context, status models.AccountStatus) ([]*models.BalanceAccount, error) {
	if status != "" && status != models.AccountStatusActive && status != models.AccountStatusCleared {
		return nil, apperr.Validation("unknown account status %q", status)
	}
	return s.Accounts.List(ctx, status)
}

func (s *LedgerService) ListPayments(ctx context.Context, accountID int64) ([]*models.PaymentEvent, error) {
	if _, err := s.Accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.Accounts.ListPayments(ctx, accountID)
}
