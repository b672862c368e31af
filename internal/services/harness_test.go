package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"coffee-backend/internal/models"
	"coffee-backend/internal/workflow"
)

type harness struct {
	clock     *stepClock
	outbox    *fakeOutbox
	requests  *fakeRequests
	accounts  *fakeAccounts
	batches   *fakeBatches
	employees *fakeEmployees
	docs      *fakeDocuments
	cache     *fakeCache
	notifier  *fakeNotifier
	archiver  *fakeArchiver
	logs      *observer.ObservedLogs

	Requests  *RequestService
	Approvals *ApprovalService
	Ledger    *LedgerService
	Batches   *BatchService
	Sync      *EmployeeSyncService
	Effects   *EffectService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	h := &harness{
		clock:     newClock(),
		outbox:    &fakeOutbox{},
		accounts:  newFakeAccounts(),
		batches:   newFakeBatches(),
		employees: &fakeEmployees{},
		docs:      newFakeDocuments(),
		cache:     &fakeCache{},
		notifier:  &fakeNotifier{},
		archiver:  &fakeArchiver{},
		logs:      logs,
	}
	h.requests = newFakeRequests(h.outbox)

	h.Requests = NewRequestService(h.requests, h.notifier, log.Named("requests"))
	h.Requests.Clock = h.clock

	h.Ledger = NewLedgerService(h.accounts, h.docs, h.cache, h.notifier, 3, log.Named("ledger"))
	h.Ledger.Clock = h.clock

	h.Sync = NewEmployeeSyncService(h.employees, h.docs, log.Named("sync"))
	h.Sync.Clock = h.clock

	h.Effects = NewEffectService(h.requests, h.Ledger, h.Sync, h.docs, h.outbox, 10, 3, log.Named("outbox"))
	h.Effects.Clock = h.clock

	h.Approvals = NewApprovalService(h.requests, h.docs, h.Effects, h.notifier, workflow.DefaultPolicy(), 3, log.Named("approval"))
	h.Approvals.Clock = h.clock

	h.Batches = NewBatchService(h.batches, h.archiver, h.notifier, 3, log.Named("batch"))
	h.Batches.Clock = h.clock
	return h
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func (h *harness) submit(t *testing.T, typ models.RequestType, amount int64, details any, three bool, by string) *models.ApprovalRequest {
	t.Helper()
	req, err := h.Requests.Submit(context.Background(), models.SubmitRequestInput{
		Type:                   typ,
		Title:                  string(typ) + " request",
		Amount:                 decimal.NewFromInt(amount),
		Details:                rawJSON(t, details),
		RequiresThreeApprovals: three,
	}, Actor{Name: by, Role: "employee"})
	require.NoError(t, err)
	return req
}

func (h *harness) decide(req *models.ApprovalRequest, stage models.Stage, approved bool, who, role, reason string) (*models.ApprovalRequest, error) {
	return h.Approvals.RecordApproval(context.Background(), req.Kind, req.ID,
		models.RecordApprovalInput{Stage: stage, Approved: approved, Reason: reason},
		Actor{Name: who, Role: role})
}

var (
	finance = Actor{Name: "bob", Role: "finance"}
	admin   = Actor{Name: "alice", Role: "admin"}
)

func cashDetails() workflow.CashRequisitionDetails {
	return workflow.CashRequisitionDetails{Purpose: "Fuel for generator"}
}
