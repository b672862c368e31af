package services

import (
	"context"
	"time"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

// The repositories package satisfies these; tests use in-memory versions.

type RequestStore interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	GetByID(ctx context.Context, kind models.RequestKind, id int64) (*models.ApprovalRequest, error)
	List(ctx context.Context, kind models.RequestKind, filter models.RequestFilter) ([]*models.ApprovalRequest, error)
	UpdateStages(ctx context.Context, req *models.ApprovalRequest, expectedVersion int, event *models.OutboxEvent) error
}

type AccountStore interface {
	Create(ctx context.Context, acct *models.BalanceAccount) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.BalanceAccount, error)
	List(ctx context.Context, status models.AccountStatus) ([]*models.BalanceAccount, error)
	ApplyPayment(ctx context.Context, next *models.BalanceAccount, expectedVersion int, event *models.PaymentEvent) error
	GetPaymentByKey(ctx context.Context, key string) (*models.PaymentEvent, error)
	ListPayments(ctx context.Context, accountID int64) ([]*models.PaymentEvent, error)
}

type BatchStore interface {
	Create(ctx context.Context, b *models.InventoryBatch) error
	GetByID(ctx context.Context, id int64) (*models.InventoryBatch, error)
	List(ctx context.Context, commodity string) ([]models.InventoryBatch, error)
	ListEligible(ctx context.Context, commodity string) ([]models.InventoryBatch, error)
	AddSource(ctx context.Context, next *models.InventoryBatch, expectedVersion int, src *models.BatchSource) error
	GetSourceByKey(ctx context.Context, key string) (*models.BatchSource, error)
	CommitAllocation(ctx context.Context, updates []models.BatchUpdate, sales []models.BatchSale, commodity string) error
	ListSales(ctx context.Context, allocationID string) ([]models.BatchSale, string, error)
}

type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]*models.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error
}

type EmployeeStore interface {
	Upsert(ctx context.Context, e *models.Employee) error
	GetByID(ctx context.Context, id int64) (*models.Employee, error)
	UpdatePermissions(ctx context.Context, id int64, permissions []string, at time.Time) (*models.Employee, error)
	List(ctx context.Context) ([]*models.Employee, error)
}

// DocumentStore is the secondary store. Writes to it are idempotent by _id.
type DocumentStore interface {
	UpsertFinanceTransaction(ctx context.Context, doc *models.FinanceTransaction) error
	UpsertDailyTask(ctx context.Context, doc *models.DailyTask) error
	InsertApprovalAudit(ctx context.Context, doc *models.ApprovalAudit) error
	UpsertEmployeeMirror(ctx context.Context, doc *models.EmployeeMirror) error
}

// PaymentCache is a fast path for idempotent payment replays. Misses are normal.
type PaymentCache interface {
	GetPayment(ctx context.Context, key string) (*models.PaymentResult, bool)
	PutPayment(ctx context.Context, key string, result *models.PaymentResult)
}

// Notifier pushes change notifications to connected clients.
type Notifier interface {
	Notify(eventType string, id any, data any, actor string)
}

// ReceiptArchiver stores a rendered allocation receipt.
type ReceiptArchiver interface {
	Archive(ctx context.Context, result *models.AllocationResult) error
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	Name string
	Role string
}

// UnavailableDocuments stands in for the document store when it could not be
// reached at startup. Every write fails and is reported as an auxiliary failure.
type UnavailableDocuments struct{}

func (UnavailableDocuments) UpsertFinanceTransaction(context.Context, *models.FinanceTransaction) error {
	return apperr.ErrUnavailable
}

func (UnavailableDocuments) UpsertDailyTask(context.Context, *models.DailyTask) error {
	return apperr.ErrUnavailable
}

func (UnavailableDocuments) InsertApprovalAudit(context.Context, *models.ApprovalAudit) error {
	return apperr.ErrUnavailable
}

func (UnavailableDocuments) UpsertEmployeeMirror(context.Context, *models.EmployeeMirror) error {
	return apperr.ErrUnavailable
}

type noopCache struct{}

func (noopCache) GetPayment(context.Context, string) (*models.PaymentResult, bool) { return nil, false }
func (noopCache) PutPayment(context.Context, string, *models.PaymentResult)       {}

type noopNotifier struct{}

func (noopNotifier) Notify(string, any, any, string) {}
