package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/models"
	"coffee-backend/internal/workflow"
)

func approveTwoStage(t *testing.T, h *harness, req *models.ApprovalRequest) {
	t.Helper()
	_, err := h.decide(req, models.StageFinance, true, finance.Name, finance.Role, "")
	require.NoError(t, err)
	r, err := h.decide(req, models.StageAdmin, true, admin.Name, admin.Role, "")
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, r.Status)
}

func TestSupplierAdvanceOpensAccountOnce(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t, models.RequestTypeSupplierAdvance, 25000,
		workflow.SupplierAdvanceDetails{SupplierName: "Hill Estate"}, false, "carol")
	approveTwoStage(t, h, req)

	require.Len(t, h.accounts.accounts, 1)
	acct := h.accounts.accounts[1]
	assert.Equal(t, models.AccountKindSupplierAdvance, acct.Kind)
	assert.Equal(t, "Hill Estate", acct.OwnerName)
	assert.True(t, acct.CurrentOutstanding.Equal(money(25000)))
	require.NotNil(t, acct.SourceRequestID)
	assert.Equal(t, req.ID, *acct.SourceRequestID)

	// Redelivering the same event is harmless.
	event := h.outbox.get(1)
	require.NoError(t, h.Effects.Execute(context.Background(), &event))
	assert.Len(t, h.accounts.accounts, 1)
}

func TestUserRegistrationCreatesMirroredEmployee(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t, models.RequestTypeUserRegistration, 0, workflow.UserRegistrationDetails{
		Name:  "Dana Roy",
		Email: "Dana@Example.com",
		Role:  "finance",
	}, false, "dana")
	approveTwoStage(t, h, req)

	require.Len(t, h.employees.rows, 1)
	emp := h.employees.rows[0]
	assert.Equal(t, "dana@example.com", emp.Email)
	assert.Equal(t, "finance", emp.Role)
	assert.True(t, emp.Active)

	mirror, ok := h.docs.employees[emp.ID]
	require.True(t, ok)
	assert.Equal(t, "Dana Roy", mirror.Name)
}

func TestLeaveApprovalCreatesDailyTask(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t, models.RequestTypeLeave, 0, workflow.LeaveDetails{
		LeaveType: "annual",
		StartDate: "2025-04-01",
		EndDate:   "2025-04-03",
	}, false, "carol")
	approveTwoStage(t, h, req)

	task, ok := h.docs.tasks["request:approval:1"]
	require.True(t, ok)
	assert.Equal(t, string(models.RequestTypeLeave), task.Category)
	assert.Equal(t, "carol", task.AssignedTo)
	assert.Empty(t, h.docs.finance)
	assert.Empty(t, h.accounts.accounts)
}

func TestEffectGoesDeadAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)
	req := h.submit(t, models.RequestTypeLeave, 0, workflow.LeaveDetails{
		LeaveType: "sick",
		StartDate: "2025-04-01",
		EndDate:   "2025-04-01",
	}, false, "carol")
	h.docs.setFail("daily_tasks", true)
	approveTwoStage(t, h, req)

	for i := 0; i < 2; i++ {
		_, err := h.Effects.RedeliverPending(context.Background())
		require.NoError(t, err)
	}
	event := h.outbox.get(1)
	assert.Equal(t, models.OutboxStatusDead, event.Status)
	assert.Equal(t, 3, event.Attempts)
	require.NotNil(t, event.LastError)

	result, err := h.Effects.RedeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted, "dead events are not retried")
}

func TestExecuteRefusesUnknownEventType(t *testing.T) {
	h := newHarness(t)
	err := h.Effects.Execute(context.Background(), &models.OutboxEvent{EventType: "request.archived"})
	assert.Error(t, err)
}
