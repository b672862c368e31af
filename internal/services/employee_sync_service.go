package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/validation"
)

// EmployeeSyncService keeps the relational employees table as the source of
// truth and mirrors every change into the document store.
type EmployeeSyncService struct {
	Employees EmployeeStore
	Documents DocumentStore
	Clock     timeutil.Clock
	log       *zap.Logger
}

func NewEmployeeSyncService(employees EmployeeStore, documents DocumentStore, log *zap.Logger) *EmployeeSyncService {
	return &EmployeeSyncService{Employees: employees, Documents: documents, Clock: timeutil.System, log: orNop(log)}
}

func (s *EmployeeSyncService) Upsert(ctx context.Context, in models.UpsertEmployeeInput) (*models.Employee, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	e := &models.Employee{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Role:            in.Role,
		Permissions:     normalizePermissions(in.Permissions),
		Active:          true,
		SourceRequestID: in.SourceRequestID,
		UpdatedAt:       s.Clock.Now(),
	}
	if err := s.Employees.Upsert(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("employee saved", zap.Int64("employee_id", e.ID), zap.String("email", e.Email), zap.String("role", e.Role))
	s.mirror(ctx, e)
	return e, nil
}

func (s *EmployeeSyncService) UpdatePermissions(ctx context.Context, id int64, permissions []string) (*models.Employee, error) {
	e, err := s.Employees.UpdatePermissions(ctx, id, normalizePermissions(permissions), s.Clock.Now())
	if err != nil {
		return nil, err
	}
	s.log.Info("employee permissions updated", zap.Int64("employee_id", id), zap.Strings("permissions", e.Permissions))
	s.mirror(ctx, e)
	return e, nil
}

func (s *EmployeeSyncService) Get(ctx context.Context, id int64) (*models.Employee, error) {
	return s.Employees.GetByID(ctx, id)
}

func (s *EmployeeSyncService) List(ctx context.Context) ([]*models.Employee, error) {
	return s.Employees.List(ctx)
}

// ResyncAll rewrites the mirror of every employee from the relational rows.
func (s *EmployeeSyncService) ResyncAll(ctx context.Context) (models.ResyncResult, error) {
	employees, err := s.Employees.List(ctx)
	if err != nil {
		return models.ResyncResult{}, err
	}
	result := models.ResyncResult{Total: len(employees)}
	for _, e := range employees {
		if s.mirror(ctx, e) {
			result.Mirrored++
		} else {
			result.Failed++
		}
	}
	s.log.Info("employee mirror resynced",
		zap.Int("total", result.Total),
		zap.Int("mirrored", result.Mirrored),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *EmployeeSyncService) mirror(ctx context.Context, e *models.Employee) bool {
	if s.Documents == nil {
		return false
	}
	doc := &models.EmployeeMirror{
		EmployeeID:  e.ID,
		Name:        e.Name,
		Email:       e.Email,
		Phone:       e.Phone,
		Role:        e.Role,
		Permissions: e.Permissions,
		Active:      e.Active,
		SyncedAt:    s.Clock.Now(),
	}
	if err := s.Documents.UpsertEmployeeMirror(ctx, doc); err != nil {
		auxFailed(s.log, "employees", err, zap.Int64("employee_id", e.ID))
		return false
	}
	return true
}

// normalizePermissions trims, drops blanks and duplicates, and sorts.
func normalizePermissions(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
