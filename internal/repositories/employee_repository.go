package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

type EmployeeRepository struct {
	DB      *pgxpool.Pool
	Retries int
}

func NewEmployeeRepository(pool *pgxpool.Pool, retries int) *EmployeeRepository {
	return &EmployeeRepository{DB: pool, Retries: retries}
}

const employeeColumns = `id, name, email, phone, role, permissions, active, source_request_id, updated_at`

func scanEmployee(row rowScanner) (*models.Employee, error) {
	e := &models.Employee{}
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Role, &e.Permissions, &e.Active, &e.SourceRequestID, &e.UpdatedAt)
	return e, err
}

// Upsert inserts the employee or updates the row with the same email.
func (r *EmployeeRepository) Upsert(ctx context.Context, e *models.Employee) error {
	if e.Permissions == nil {
		e.Permissions = []string{}
	}
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		err := r.DB.QueryRow(ctx, `
			INSERT INTO employees (name, email, phone, role, permissions, active, source_request_id, updated_at)
			VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8)
			ON CONFLICT (email) DO UPDATE SET
				name = EXCLUDED.name,
				phone = EXCLUDED.phone,
				role = EXCLUDED.role,
				permissions = EXCLUDED.permissions,
				active = EXCLUDED.active,
				source_request_id = COALESCE(employees.source_request_id, EXCLUDED.source_request_id),
				updated_at = EXCLUDED.updated_at
			RETURNING `+employeeColumns,
			e.Name, e.Email, e.Phone, e.Role, e.Permissions, e.Active, e.SourceRequestID, e.UpdatedAt,
		).Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.Role, &e.Permissions, &e.Active, &e.SourceRequestID, &e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert employee: %w", err)
		}
		return nil
	})
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*models.Employee, error) {
	var e *models.Employee
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		e, err = scanEmployee(r.DB.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("employee", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

func (r *EmployeeRepository) UpdatePermissions(ctx context.Context, id int64, permissions []string, at time.Time) (*models.Employee, error) {
	if permissions == nil {
		permissions = []string{}
	}
	var e *models.Employee
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		e, err = scanEmployee(r.DB.QueryRow(ctx, `
			UPDATE employees SET permissions = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+employeeColumns, id, permissions, at))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("employee", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}
	return e, nil
}

func (r *EmployeeRepository) List(ctx context.Context) ([]*models.Employee, error) {
	var out []*models.Employee
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEmployee(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return out, nil
}
