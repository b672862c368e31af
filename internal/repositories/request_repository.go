package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

type RequestRepository struct {
	DB      *pgxpool.Pool
	Retries int
}

func NewRequestRepository(pool *pgxpool.Pool, retries int) *RequestRepository {
	return &RequestRepository{DB: pool, Retries: retries}
}

const requestColumns = `id, type, title, description, amount, requested_by, requested_at, priority, status,
	details, requires_three_approvals,
	finance_approved, finance_approved_at, finance_approved_by,
	admin_approved, admin_approved_at, admin_approved_by,
	admin1_approved, admin1_approved_at, admin1_approved_by,
	admin2_approved, admin2_approved_at, admin2_approved_by,
	rejection_reason, rejected_at, rejected_by, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, kind models.RequestKind) (*models.ApprovalRequest, error) {
	r := &models.ApprovalRequest{Kind: kind}
	var details []byte
	err := row.Scan(
		&r.ID, &r.Type, &r.Title, &r.Description, &r.Amount, &r.RequestedBy, &r.RequestedAt, &r.Priority, &r.Status,
		&details, &r.RequiresThreeApprovals,
		&r.Finance.Approved, &r.Finance.ApprovedAt, &r.Finance.ApprovedBy,
		&r.Admin.Approved, &r.Admin.ApprovedAt, &r.Admin.ApprovedBy,
		&r.Admin1.Approved, &r.Admin1.ApprovedAt, &r.Admin1.ApprovedBy,
		&r.Admin2.Approved, &r.Admin2.ApprovedAt, &r.Admin2.ApprovedBy,
		&r.RejectionReason, &r.RejectedAt, &r.RejectedBy, &r.Version, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Details = json.RawMessage(details)
	return r, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *models.ApprovalRequest) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (type, title, description, amount, requested_by, requested_at, priority, status,
			details, requires_three_approvals, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $6)
		RETURNING id, version, updated_at`, req.Kind.Table())

	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		err := r.DB.QueryRow(ctx, query,
			req.Type, req.Title, req.Description, req.Amount, req.RequestedBy, req.RequestedAt,
			req.Priority, req.Status, []byte(req.Details), req.RequiresThreeApprovals,
		).Scan(&req.ID, &req.Version, &req.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		return nil
	})
}

func (r *RequestRepository) GetByID(ctx context.Context, kind models.RequestKind, id int64) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, requestColumns, kind.Table())

	var req *models.ApprovalRequest
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		req, err = scanRequest(r.DB.QueryRow(ctx, query, id), kind)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *RequestRepository) List(ctx context.Context, kind models.RequestKind, filter models.RequestFilter) ([]*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, requestColumns, kind.Table())
	var conditions []string
	var args []any
	argNum := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argNum))
		args = append(args, filter.Type)
		argNum++
	}
	if filter.RequestedBy != "" {
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", argNum))
		args = append(args, filter.RequestedBy)
		argNum++
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY requested_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, limit)

	var out []*models.ApprovalRequest
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			req, err := scanRequest(rows, kind)
			if err != nil {
				return err
			}
			out = append(out, req)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return out, nil
}

// UpdateStages writes the complete stage set, status and rejection fields of
// req if the stored version still equals expectedVersion. A non-nil event is
// inserted into the outbox in the same transaction. A version mismatch
// returns apperr.ErrConflict and writes nothing.
func (r *RequestRepository) UpdateStages(ctx context.Context, req *models.ApprovalRequest, expectedVersion int, event *models.OutboxEvent) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			status = $3,
			finance_approved = $4, finance_approved_at = $5, finance_approved_by = $6,
			admin_approved = $7, admin_approved_at = $8, admin_approved_by = $9,
			admin1_approved = $10, admin1_approved_at = $11, admin1_approved_by = $12,
			admin2_approved = $13, admin2_approved_at = $14, admin2_approved_by = $15,
			rejection_reason = $16, rejected_at = $17, rejected_by = $18,
			version = version + 1,
			updated_at = $19
		WHERE id = $1 AND version = $2
		RETURNING version`, req.Kind.Table())

	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
			var newVersion int
			err := tx.QueryRow(ctx, query,
				req.ID, expectedVersion, req.Status,
				req.Finance.Approved, req.Finance.ApprovedAt, req.Finance.ApprovedBy,
				req.Admin.Approved, req.Admin.ApprovedAt, req.Admin.ApprovedBy,
				req.Admin1.Approved, req.Admin1.ApprovedAt, req.Admin1.ApprovedBy,
				req.Admin2.Approved, req.Admin2.ApprovedAt, req.Admin2.ApprovedBy,
				req.RejectionReason, req.RejectedAt, req.RejectedBy,
				req.UpdatedAt,
			).Scan(&newVersion)
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.ErrConflict
			}
			if err != nil {
				return fmt.Errorf("failed to update request stages: %w", err)
			}

			if event != nil {
				if err := insertOutbox(ctx, tx, event); err != nil {
					return err
				}
			}
			req.Version = newVersion
			return nil
		})
	})
}
