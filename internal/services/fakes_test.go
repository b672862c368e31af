package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coffee-backend/internal/allocation"
	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *stepClock { return &stepClock{now: t0} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var errStoreDown = errors.New("store down")

type fakeRequests struct {
	mu     sync.Mutex
	rows   map[models.RequestKind]map[int64]*models.ApprovalRequest
	nextID int64
	outbox *fakeOutbox
	// conflicts makes the next N UpdateStages calls lose a version race.
	conflicts int
	updates   int
}

func newFakeRequests(outbox *fakeOutbox) *fakeRequests {
	return &fakeRequests{rows: map[models.RequestKind]map[int64]*models.ApprovalRequest{}, outbox: outbox}
}

func (f *fakeRequests) Create(_ context.Context, req *models.ApprovalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	req.Version = 1
	if f.rows[req.Kind] == nil {
		f.rows[req.Kind] = map[int64]*models.ApprovalRequest{}
	}
	f.rows[req.Kind][req.ID] = req.Clone()
	return nil
}

func (f *fakeRequests) GetByID(_ context.Context, kind models.RequestKind, id int64) (*models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[kind][id]
	if !ok {
		return nil, apperr.NotFound("request", id)
	}
	return row.Clone(), nil
}

func (f *fakeRequests) List(_ context.Context, kind models.RequestKind, filter models.RequestFilter) ([]*models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ApprovalRequest
	for _, row := range f.rows[kind] {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, row.Clone())
	}
	return out, nil
}

func (f *fakeRequests) UpdateStages(_ context.Context, req *models.ApprovalRequest, expectedVersion int, event *models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	row, ok := f.rows[req.Kind][req.ID]
	if !ok {
		return apperr.NotFound("request", req.ID)
	}
	if f.conflicts > 0 {
		f.conflicts--
		row.Version++
		return apperr.ErrConflict
	}
	if row.Version != expectedVersion {
		return apperr.ErrConflict
	}
	if event != nil && f.outbox != nil {
		f.outbox.insert(event)
	}
	req.Version = expectedVersion + 1
	f.rows[req.Kind][req.ID] = req.Clone()
	return nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []*models.OutboxEvent
}

func (f *fakeOutbox) insert(event *models.OutboxEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.EventType == event.EventType && e.AggregateKind == event.AggregateKind && e.AggregateID == event.AggregateID {
			event.ID = e.ID
			return
		}
	}
	event.ID = int64(len(f.events) + 1)
	event.Status = models.OutboxStatusPending
	stored := *event
	f.events = append(f.events, &stored)
}

func (f *fakeOutbox) get(id int64) models.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id-1]
}

func (f *fakeOutbox) ListPending(_ context.Context, limit int) ([]*models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.OutboxEvent
	for _, e := range f.events {
		if e.Status == models.OutboxStatusPending || e.Status == models.OutboxStatusFailed {
			c := *e
			out = append(out, &c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id-1]
	e.Status = models.OutboxStatusSent
	e.ProcessedAt = &at
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id int64, reason string, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id-1]
	e.Attempts++
	e.LastError = &reason
	e.Status = models.OutboxStatusFailed
	if e.Attempts >= maxAttempts {
		e.Status = models.OutboxStatusDead
	}
	return nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*models.BalanceAccount
	payments []*models.PaymentEvent
	nextID   int64
	// conflicts makes the next N ApplyPayment calls lose a version race.
	conflicts int
	// raceKey simulates a concurrent writer that commits the same key first.
	raceKey func(next *models.BalanceAccount, event *models.PaymentEvent)
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[int64]*models.BalanceAccount{}}
}

func (f *fakeAccounts) Create(_ context.Context, acct *models.BalanceAccount) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acct.SourceRequestID != nil {
		for _, a := range f.accounts {
			if a.SourceRequestID != nil && *a.SourceRequestID == *acct.SourceRequestID {
				*acct = *a
				return false, nil
			}
		}
	}
	f.nextID++
	acct.ID = f.nextID
	acct.Version = 1
	stored := *acct
	f.accounts[acct.ID] = &stored
	return true, nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id int64) (*models.BalanceAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperr.NotFound("balance account", id)
	}
	c := *a
	return &c, nil
}

func (f *fakeAccounts) List(_ context.Context, status models.AccountStatus) ([]*models.BalanceAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BalanceAccount
	for _, a := range f.accounts {
		if status == "" || a.Status == status {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeAccounts) ApplyPayment(_ context.Context, next *models.BalanceAccount, expectedVersion int, event *models.PaymentEvent) error {
	f.mu.Lock()
	if race := f.raceKey; race != nil {
		f.raceKey = nil
		f.mu.Unlock()
		race(next, event)
		f.mu.Lock()
	}
	defer f.mu.Unlock()

	stored := f.accounts[next.ID]
	if f.conflicts > 0 {
		f.conflicts--
		stored.Version++
		return apperr.ErrConflict
	}
	if stored.Version != expectedVersion {
		return apperr.ErrConflict
	}
	for _, p := range f.payments {
		if p.IdempotencyKey == event.IdempotencyKey {
			return apperr.ErrDuplicate
		}
	}
	event.ID = int64(len(f.payments) + 1)
	ev := *event
	f.payments = append(f.payments, &ev)
	next.Version = expectedVersion + 1
	c := *next
	f.accounts[next.ID] = &c
	return nil
}

// commitDirect writes an account state and event outside the CAS path.
func (f *fakeAccounts) commitDirect(next *models.BalanceAccount, event *models.PaymentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.payments) + 1)
	ev := *event
	f.payments = append(f.payments, &ev)
	c := *next
	c.Version = f.accounts[next.ID].Version + 1
	f.accounts[next.ID] = &c
}

func (f *fakeAccounts) GetPaymentByKey(_ context.Context, key string) (*models.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.IdempotencyKey == key {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) ListPayments(_ context.Context, accountID int64) ([]*models.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PaymentEvent
	for _, p := range f.payments {
		if p.AccountID == accountID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeBatches struct {
	mu      sync.Mutex
	batches map[int64]*models.InventoryBatch
	sources []models.BatchSource
	sales   map[string][]models.BatchSale
	kinds   map[string]string
	nextID  int64
	// beforeCommit runs once, before CommitAllocation checks versions.
	beforeCommit func()
	commits      int
	// lostAcks makes that many successful writes report ErrConflict anyway,
	// as if the commit acknowledgement never reached the caller.
	lostAcks int
}

func (f *fakeBatches) ack() error {
	if f.lostAcks > 0 {
		f.lostAcks--
		return apperr.ErrConflict
	}
	return nil
}

func newFakeBatches() *fakeBatches {
	return &fakeBatches{
		batches: map[int64]*models.InventoryBatch{},
		sales:   map[string][]models.BatchSale{},
		kinds:   map[string]string{},
	}
}

func (f *fakeBatches) seed(b models.InventoryBatch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[b.ID] = &b
	if b.ID > f.nextID {
		f.nextID = b.ID
	}
}

func (f *fakeBatches) Create(_ context.Context, b *models.InventoryBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.batches {
		if existing.BatchCode == b.BatchCode {
			return apperr.Validation("batch code %s already exists", b.BatchCode)
		}
	}
	f.nextID++
	b.ID = f.nextID
	b.Version = 1
	c := *b
	f.batches[b.ID] = &c
	return nil
}

func (f *fakeBatches) GetByID(_ context.Context, id int64) (*models.InventoryBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, apperr.NotFound("batch", id)
	}
	c := *b
	return &c, nil
}

func (f *fakeBatches) List(_ context.Context, commodity string) ([]models.InventoryBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InventoryBatch
	for _, b := range f.batches {
		if commodity == "" || strings.EqualFold(b.CommodityType, commodity) {
			out = append(out, *b)
		}
	}
	allocation.SortFIFO(out)
	return out, nil
}

func (f *fakeBatches) ListEligible(ctx context.Context, commodity string) ([]models.InventoryBatch, error) {
	all, _ := f.List(ctx, commodity)
	var out []models.InventoryBatch
	for _, b := range all {
		if allocation.Eligible(b, commodity) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBatches) AddSource(_ context.Context, next *models.InventoryBatch, expectedVersion int, src *models.BatchSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.batches[next.ID]
	if stored.Version != expectedVersion {
		return apperr.ErrConflict
	}
	for _, existing := range f.sources {
		if src.IdempotencyKey != "" && existing.IdempotencyKey == src.IdempotencyKey {
			return apperr.ErrDuplicate
		}
	}
	src.ID = int64(len(f.sources) + 1)
	f.sources = append(f.sources, *src)
	next.Version = expectedVersion + 1
	c := *next
	f.batches[next.ID] = &c
	return f.ack()
}

func (f *fakeBatches) GetSourceByKey(_ context.Context, key string) (*models.BatchSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.sources {
		if src.IdempotencyKey == key {
			c := src
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeBatches) CommitAllocation(_ context.Context, updates []models.BatchUpdate, sales []models.BatchSale, commodity string) error {
	if hook := f.beforeCommit; hook != nil {
		f.beforeCommit = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	for _, u := range updates {
		if f.batches[u.Next.ID].Version != u.ExpectedVersion {
			return apperr.ErrConflict
		}
	}
	for _, s := range sales {
		if _, ok := f.sales[s.AllocationID]; ok {
			return apperr.ErrDuplicate
		}
	}
	for _, u := range updates {
		next := u.Next
		next.Version = u.ExpectedVersion + 1
		f.batches[next.ID] = &next
	}
	for _, s := range sales {
		f.sales[s.AllocationID] = append(f.sales[s.AllocationID], s)
		f.kinds[s.AllocationID] = commodity
	}
	return f.ack()
}

func (f *fakeBatches) ListSales(_ context.Context, allocationID string) ([]models.BatchSale, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BatchSale(nil), f.sales[allocationID]...), f.kinds[allocationID], nil
}

type fakeEmployees struct {
	mu   sync.Mutex
	rows []*models.Employee
}

func (f *fakeEmployees) Upsert(_ context.Context, e *models.Employee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Email == e.Email {
			src := row.SourceRequestID
			id := row.ID
			*row = *e
			row.ID = id
			if src != nil {
				row.SourceRequestID = src
			}
			*e = *row
			return nil
		}
	}
	e.ID = int64(len(f.rows) + 1)
	c := *e
	f.rows = append(f.rows, &c)
	return nil
}

func (f *fakeEmployees) GetByID(_ context.Context, id int64) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || int(id) > len(f.rows) {
		return nil, apperr.NotFound("employee", id)
	}
	c := *f.rows[id-1]
	return &c, nil
}

func (f *fakeEmployees) UpdatePermissions(_ context.Context, id int64, permissions []string, at time.Time) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || int(id) > len(f.rows) {
		return nil, apperr.NotFound("employee", id)
	}
	row := f.rows[id-1]
	row.Permissions = permissions
	row.UpdatedAt = at
	c := *row
	return &c, nil
}

func (f *fakeEmployees) List(_ context.Context) ([]*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Employee, 0, len(f.rows))
	for _, row := range f.rows {
		c := *row
		out = append(out, &c)
	}
	return out, nil
}

// fakeDocuments keeps documents by collection and _id. Sinks listed in fail return errStoreDown.
type fakeDocuments struct {
	mu        sync.Mutex
	finance   map[string]models.FinanceTransaction
	tasks     map[string]models.DailyTask
	audits    map[string]models.ApprovalAudit
	employees map[int64]models.EmployeeMirror
	fail      map[string]bool
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{
		finance:   map[string]models.FinanceTransaction{},
		tasks:     map[string]models.DailyTask{},
		audits:    map[string]models.ApprovalAudit{},
		employees: map[int64]models.EmployeeMirror{},
		fail:      map[string]bool{},
	}
}

func (f *fakeDocuments) setFail(sink string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[sink] = fail
}

func (f *fakeDocuments) UpsertFinanceTransaction(_ context.Context, doc *models.FinanceTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail["finance_transactions"] {
		return errStoreDown
	}
	if _, ok := f.finance[doc.ID]; !ok {
		f.finance[doc.ID] = *doc
	}
	return nil
}

func (f *fakeDocuments) UpsertDailyTask(_ context.Context, doc *models.DailyTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail["daily_tasks"] {
		return errStoreDown
	}
	if _, ok := f.tasks[doc.ID]; !ok {
		f.tasks[doc.ID] = *doc
	}
	return nil
}

func (f *fakeDocuments) InsertApprovalAudit(_ context.Context, doc *models.ApprovalAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail["approval_audit"] {
		return errStoreDown
	}
	if _, ok := f.audits[doc.ID]; !ok {
		f.audits[doc.ID] = *doc
	}
	return nil
}

func (f *fakeDocuments) UpsertEmployeeMirror(_ context.Context, doc *models.EmployeeMirror) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail["employees"] {
		return errStoreDown
	}
	f.employees[doc.EmployeeID] = *doc
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]models.PaymentResult
}

func (f *fakeCache) GetPayment(_ context.Context, key string) (*models.PaymentResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.data[key]
	if !ok {
		return nil, false
	}
	return &r, true
}

func (f *fakeCache) PutPayment(_ context.Context, key string, result *models.PaymentResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = map[string]models.PaymentResult{}
	}
	f.data[key] = *result
}

type notification struct {
	Type  string
	ID    any
	Actor string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(eventType string, id any, _ any, actor string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{Type: eventType, ID: id, Actor: actor})
}

func (f *fakeNotifier) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, n := range f.sent {
		out = append(out, n.Type)
	}
	return out
}

type fakeArchiver struct {
	err      error
	archived []string
}

func (f *fakeArchiver) Archive(_ context.Context, result *models.AllocationResult) error {
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, result.AllocationID)
	return nil
}
