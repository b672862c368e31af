package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"coffee-backend/internal/models"
	"coffee-backend/pkg/utils"
)

type employeeService interface {
	Upsert(ctx context.Context, in models.UpsertEmployeeInput) (*models.Employee, error)
	UpdatePermissions(ctx context.Context, id int64, permissions []string) (*models.Employee, error)
	Get(ctx context.Context, id int64) (*models.Employee, error)
	List(ctx context.Context) ([]*models.Employee, error)
	ResyncAll(ctx context.Context) (models.ResyncResult, error)
}

type EmployeeHandler struct {
	employees employeeService
	log       *zap.Logger
}

func NewEmployeeHandler(employees employeeService, log *zap.Logger) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, log: orNop(log)}
}

// Upsert handles POST /api/employees
func (h *EmployeeHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var in models.UpsertEmployeeInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	e, err := h.employees.Upsert(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, e)
}

// List handles GET /api/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.employees.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if employees == nil {
		employees = []*models.Employee{}
	}
	utils.JSON(w, http.StatusOK, employees)
}

// Get handles GET /api/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	e, err := h.employees.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, e)
}

// UpdatePermissions handles PUT /api/employees/{id}/permissions
func (h *EmployeeHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var body struct {
		Permissions []string `json:"permissions"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, h.log, err)
		return
	}
	e, err := h.employees.UpdatePermissions(r.Context(), id, body.Permissions)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, e)
}

// Resync handles POST /api/admin/employees/resync
func (h *EmployeeHandler) Resync(w http.ResponseWriter, r *http.Request) {
	result, err := h.employees.ResyncAll(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("employee mirror resync requested",
		zap.String("actor", actorFrom(r).Name),
		zap.Int("total", result.Total),
		zap.Int("failed", result.Failed),
	)
	utils.JSON(w, http.StatusOK, result)
}
