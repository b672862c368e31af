package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/db"
	"coffee-backend/internal/models"
)

type BatchRepository struct {
	DB      *pgxpool.Pool
	Retries int
}

func NewBatchRepository(pool *pgxpool.Pool, retries int) *BatchRepository {
	return &BatchRepository{DB: pool, Retries: retries}
}

const batchColumns = `id, batch_code, commodity_type, target_capacity, total_kilograms, remaining_kilograms,
	status, batch_date, created_at, version`

func scanBatch(row rowScanner) (models.InventoryBatch, error) {
	var b models.InventoryBatch
	err := row.Scan(&b.ID, &b.BatchCode, &b.CommodityType, &b.TargetCapacity, &b.TotalKilograms,
		&b.RemainingKilograms, &b.Status, &b.BatchDate, &b.CreatedAt, &b.Version)
	return b, err
}

func (r *BatchRepository) Create(ctx context.Context, b *models.InventoryBatch) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		err := r.DB.QueryRow(ctx, `
			INSERT INTO inventory_batches (batch_code, commodity_type, target_capacity, total_kilograms,
				remaining_kilograms, status, batch_date, created_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
			RETURNING id, version`,
			b.BatchCode, b.CommodityType, b.TargetCapacity, b.TotalKilograms, b.RemainingKilograms,
			b.Status, b.BatchDate, b.CreatedAt,
		).Scan(&b.ID, &b.Version)
		if db.IsUniqueViolation(err) {
			return apperr.Validation("batch code %s already exists", b.BatchCode)
		}
		if err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		return nil
	})
}

func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*models.InventoryBatch, error) {
	var b models.InventoryBatch
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		var err error
		b, err = scanBatch(r.DB.QueryRow(ctx, `SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("batch", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &b, nil
}

func (r *BatchRepository) queryBatches(ctx context.Context, query string, args ...any) ([]models.InventoryBatch, error) {
	var out []models.InventoryBatch
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			b, err := scanBatch(rows)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return rows.Err()
	})
	return out, err
}

// List returns all batches, optionally for one commodity, oldest first.
func (r *BatchRepository) List(ctx context.Context, commodity string) ([]models.InventoryBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches`
	var args []any
	if commodity != "" {
		query += ` WHERE LOWER(commodity_type) = LOWER($1)`
		args = append(args, commodity)
	}
	query += ` ORDER BY batch_date, created_at, id`

	out, err := r.queryBatches(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return out, nil
}

// ListEligible returns the batches an allocation may draw from, in FIFO order.
func (r *BatchRepository) ListEligible(ctx context.Context, commodity string) ([]models.InventoryBatch, error) {
	out, err := r.queryBatches(ctx, `
		SELECT `+batchColumns+` FROM inventory_batches
		WHERE LOWER(commodity_type) = LOWER($1)
		  AND remaining_kilograms > 0
		  AND status IN ('Filling', 'Active', 'Selling')
		ORDER BY batch_date, created_at, id`, commodity)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible batches: %w", err)
	}
	return out, nil
}

const updateBatchStock = `
	UPDATE inventory_batches
	SET total_kilograms = $3, remaining_kilograms = $4, status = $5, version = version + 1
	WHERE id = $1 AND version = $2`

// AddSource records an inbound delivery and the new batch totals atomically.
// A delivery whose idempotency key is already recorded returns
// apperr.ErrDuplicate and leaves the batch untouched.
func (r *BatchRepository) AddSource(ctx context.Context, next *models.InventoryBatch, expectedVersion int, src *models.BatchSource) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, updateBatchStock,
				next.ID, expectedVersion, next.TotalKilograms, next.RemainingKilograms, next.Status)
			if err != nil {
				return fmt.Errorf("failed to update batch: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return apperr.ErrConflict
			}

			err = tx.QueryRow(ctx, `
				INSERT INTO batch_sources (batch_id, supplier_name, kilograms, received_at, recorded_by, idempotency_key)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				src.BatchID, src.SupplierName, src.Kilograms, src.ReceivedAt, src.RecordedBy, src.IdempotencyKey,
			).Scan(&src.ID)
			if db.IsUniqueViolation(err) {
				return apperr.ErrDuplicate
			}
			if err != nil {
				return fmt.Errorf("failed to insert batch source: %w", err)
			}
			next.Version = expectedVersion + 1
			return nil
		})
	})
}

// GetSourceByKey returns the delivery recorded under key, or nil when none exists.
func (r *BatchRepository) GetSourceByKey(ctx context.Context, key string) (*models.BatchSource, error) {
	var src models.BatchSource
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		return r.DB.QueryRow(ctx, `
			SELECT id, batch_id, supplier_name, kilograms, received_at, recorded_by, idempotency_key
			FROM batch_sources WHERE idempotency_key = $1`, key,
		).Scan(&src.ID, &src.BatchID, &src.SupplierName, &src.Kilograms, &src.ReceivedAt, &src.RecordedBy, &src.IdempotencyKey)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch source: %w", err)
	}
	return &src, nil
}

// CommitAllocation applies every batch update and sale row in one
// transaction. Each update is guarded by the version read when the plan was
// made; any mismatch rolls the whole allocation back with apperr.ErrConflict.
// An allocation id that already has sale rows returns apperr.ErrDuplicate.
func (r *BatchRepository) CommitAllocation(ctx context.Context, updates []models.BatchUpdate, sales []models.BatchSale, commodity string) error {
	return db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
			for _, u := range updates {
				tag, err := tx.Exec(ctx, updateBatchStock,
					u.Next.ID, u.ExpectedVersion, u.Next.TotalKilograms, u.Next.RemainingKilograms, u.Next.Status)
				if err != nil {
					return fmt.Errorf("failed to update batch %s: %w", u.Next.BatchCode, err)
				}
				if tag.RowsAffected() == 0 {
					return apperr.ErrConflict.With("batch", u.Next.BatchCode)
				}
			}

			for i := range sales {
				s := &sales[i]
				err := tx.QueryRow(ctx, `
					INSERT INTO batch_sales (allocation_id, batch_id, batch_code, kilograms, counterparty,
						commodity_type, sold_at, sold_by)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
					RETURNING id`,
					s.AllocationID, s.BatchID, s.BatchCode, s.Kilograms, s.Counterparty, commodity, s.SoldAt, s.SoldBy,
				).Scan(&s.ID)
				if db.IsUniqueViolation(err) {
					return apperr.ErrDuplicate.With("allocation_id", s.AllocationID)
				}
				if err != nil {
					return fmt.Errorf("failed to insert batch sale: %w", err)
				}
			}
			return nil
		})
	})
}

// ListSales returns the slices of one allocation in the order they were drawn.
func (r *BatchRepository) ListSales(ctx context.Context, allocationID string) ([]models.BatchSale, string, error) {
	var out []models.BatchSale
	var commodity string
	err := db.Retry(ctx, r.Retries, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.DB.Query(ctx, `
			SELECT id, allocation_id::text, batch_id, batch_code, kilograms, counterparty, commodity_type, sold_at, sold_by
			FROM batch_sales WHERE allocation_id = $1 ORDER BY id`, allocationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s models.BatchSale
			if err := rows.Scan(&s.ID, &s.AllocationID, &s.BatchID, &s.BatchCode, &s.Kilograms,
				&s.Counterparty, &commodity, &s.SoldAt, &s.SoldBy); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to list batch sales: %w", err)
	}
	return out, commodity, nil
}
