package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coffee-backend/internal/allocation"
	"coffee-backend/internal/apperr"
	"coffee-backend/internal/metrics"
	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
	"coffee-backend/internal/validation"
)

type BatchService struct {
	Batches         BatchStore
	Receipts        ReceiptArchiver
	Notifier        Notifier
	Clock           timeutil.Clock
	ConflictRetries int
	NewID           func() string
	log             *zap.Logger
}

func NewBatchService(batches BatchStore, receipts ReceiptArchiver, notifier Notifier, conflictRetries int, log *zap.Logger) *BatchService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &BatchService{
		Batches:         batches,
		Receipts:        receipts,
		Notifier:        notifier,
		Clock:           timeutil.System,
		ConflictRetries: conflictRetries,
		NewID:           uuid.NewString,
		log:             orNop(log),
	}
}

func (s *BatchService) Create(ctx context.Context, in models.CreateBatchInput, actor string) (*models.InventoryBatch, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	batch, err := allocation.NewBatch(in, s.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.Batches.Create(ctx, &batch); err != nil {
		return nil, err
	}
	s.log.Info("batch created",
		zap.Int64("batch_id", batch.ID),
		zap.String("batch_code", batch.BatchCode),
		zap.String("commodity", batch.CommodityType))
	s.Notifier.Notify("batch.created", batch.ID, batch, actor)
	return &batch, nil
}

func (s *BatchService) Get(ctx context.Context, id int64) (*models.InventoryBatch, error) {
	return s.Batches.GetByID(ctx, id)
}

func (s *BatchService) List(ctx context.Context, commodity string) ([]models.InventoryBatch, error) {
	return s.Batches.List(ctx, strings.TrimSpace(commodity))
}

// AddToBatch records an inbound delivery against the batch. A repeated
// in.IdempotencyKey returns the batch's current state without adding stock
// again; without a key one is picked per call so that store retries stay
// exactly-once.
func (s *BatchService) AddToBatch(ctx context.Context, batchID int64, in models.AddSourceInput, actor string) (*models.InventoryBatch, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = s.NewID()
	}

	var (
		updated           models.InventoryBatch
		replayed, unacked bool
	)
	err := retryOnConflict(ctx, s.ConflictRetries, "add_to_batch", s.log, func() error {
		current, err := s.sourceReplay(ctx, batchID, key)
		if err != nil || current != nil {
			if current != nil {
				updated, replayed = *current, !unacked
			}
			return err
		}

		current, err = s.Batches.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		next, err := allocation.AddSource(*current, in.Kilograms)
		if err != nil {
			return err
		}
		src := &models.BatchSource{
			BatchID:        current.ID,
			SupplierName:   strings.TrimSpace(in.SupplierName),
			Kilograms:      in.Kilograms,
			ReceivedAt:     s.Clock.Now(),
			RecordedBy:     actor,
			IdempotencyKey: key,
		}
		err = s.Batches.AddSource(ctx, &next, current.Version, src)
		unacked = errors.Is(err, apperr.ErrConflict)
		if errors.Is(err, apperr.ErrDuplicate) {
			// A concurrent request with the same key won the insert.
			return apperr.ErrConflict
		}
		if err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		s.log.Info("batch delivery replayed",
			zap.Int64("batch_id", updated.ID),
			zap.String("idempotency_key", key))
		return &updated, nil
	}

	s.log.Info("stock added to batch",
		zap.Int64("batch_id", updated.ID),
		zap.String("kilograms", in.Kilograms.String()),
		zap.String("status", string(updated.Status)))
	s.Notifier.Notify("batch.updated", updated.ID, updated, actor)
	return &updated, nil
}

// sourceReplay returns the batch when a delivery under key is already
// recorded against it, and nil when the key is unused.
func (s *BatchService) sourceReplay(ctx context.Context, batchID int64, key string) (*models.InventoryBatch, error) {
	src, err := s.Batches.GetSourceByKey(ctx, key)
	if err != nil || src == nil {
		return nil, err
	}
	if src.BatchID != batchID {
		return nil, apperr.Validation("idempotency key already used for another batch").
			With("idempotency_key", key).With("batch_id", src.BatchID)
	}
	return s.Batches.GetByID(ctx, batchID)
}

// Allocate draws in.Kilograms of a commodity from the oldest eligible
// batches. Either every slice is written or none is. The allocation id is
// the idempotency key: once sale rows exist under it, later calls return
// the recorded allocation instead of planning again.
func (s *BatchService) Allocate(ctx context.Context, in models.AllocateInput, actor string) (*models.AllocationResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if !in.Kilograms.IsPositive() {
		return nil, apperr.Validation("kilograms must be greater than zero").With("kilograms", in.Kilograms.String())
	}
	commodity := strings.TrimSpace(in.CommodityType)
	counterparty := strings.TrimSpace(in.Counterparty)
	allocationID := s.NewID()
	if raw := strings.TrimSpace(in.AllocationID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("allocation id must be a UUID").With("allocation_id", raw)
		}
		allocationID = id.String()
	}

	var (
		result  *models.AllocationResult
		// unacked is set while our last commit reported a conflict that may
		// still have been written.
		unacked bool
		now     = s.Clock.Now()
	)
	err := retryOnConflict(ctx, s.ConflictRetries, "allocate", s.log, func() error {
		prior, err := s.allocationReplay(ctx, allocationID, commodity, counterparty, in.Kilograms)
		if err != nil || prior != nil {
			if prior != nil && unacked {
				prior.Replayed = false
			}
			result = prior
			return err
		}

		candidates, err := s.Batches.ListEligible(ctx, commodity)
		if err != nil {
			return err
		}
		p, err := allocation.PlanFIFO(candidates, commodity, in.Kilograms)
		if err != nil {
			return err
		}

		updates := make([]models.BatchUpdate, 0, len(p.Slices))
		sales := make([]models.BatchSale, 0, len(p.Slices))
		for _, slice := range p.Slices {
			updates = append(updates, models.BatchUpdate{Next: slice.Next, ExpectedVersion: slice.Batch.Version})
			sales = append(sales, models.BatchSale{
				AllocationID: allocationID,
				BatchID:      slice.Batch.ID,
				BatchCode:    slice.Batch.BatchCode,
				Kilograms:    slice.Kilograms,
				Counterparty: counterparty,
				SoldAt:       now,
				SoldBy:       actor,
			})
		}
		err = s.Batches.CommitAllocation(ctx, updates, sales, commodity)
		unacked = errors.Is(err, apperr.ErrConflict)
		if errors.Is(err, apperr.ErrDuplicate) {
			// Another request under this id won; read its rows back.
			return apperr.ErrConflict
		}
		if err != nil {
			return err
		}
		result = &models.AllocationResult{
			AllocationID:  allocationID,
			CommodityType: commodity,
			Counterparty:  counterparty,
			Requested:     in.Kilograms,
			Allocations:   p.Allocations(),
			AllocatedAt:   now,
			AllocatedBy:   actor,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		s.log.Info("allocation replayed", zap.String("allocation_id", allocationID))
		return result, nil
	}

	kg, _ := in.Kilograms.Float64()
	metrics.KilogramsAllocated.WithLabelValues(strings.ToLower(commodity)).Add(kg)
	s.log.Info("stock allocated",
		zap.String("allocation_id", allocationID),
		zap.String("commodity", commodity),
		zap.String("kilograms", in.Kilograms.String()),
		zap.Int("batches", len(result.Allocations)))

	if s.Receipts != nil {
		if err := s.Receipts.Archive(ctx, result); err != nil {
			auxFailed(s.log, "receipts", err, zap.String("allocation_id", allocationID))
		}
	}
	s.Notifier.Notify("batch.allocated", allocationID, result, actor)
	return result, nil
}

// allocationReplay rebuilds the allocation already recorded under id, or
// returns nil when there is none. A recorded allocation that differs from
// the request is a validation error.
func (s *BatchService) allocationReplay(ctx context.Context, id, commodity, counterparty string, kilograms decimal.Decimal) (*models.AllocationResult, error) {
	sales, recorded, err := s.Batches.ListSales(ctx, id)
	if err != nil || len(sales) == 0 {
		return nil, err
	}
	result := rebuildAllocation(id, sales, recorded)
	if !strings.EqualFold(recorded, commodity) || result.Counterparty != counterparty || !result.Requested.Equal(kilograms) {
		return nil, apperr.Validation("allocation id already used for a different request").With("allocation_id", id)
	}
	result.Replayed = true
	return result, nil
}

// Receipt rebuilds an allocation from its recorded sale rows.
func (s *BatchService) Receipt(ctx context.Context, allocationID string) (*models.AllocationResult, error) {
	if _, err := uuid.Parse(allocationID); err != nil {
		return nil, apperr.Validation("allocation id must be a UUID")
	}
	sales, commodity, err := s.Batches.ListSales(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, apperr.NotFound("allocation", allocationID)
	}

	return rebuildAllocation(allocationID, sales, commodity), nil
}

func rebuildAllocation(id string, sales []models.BatchSale, commodity string) *models.AllocationResult {
	result := &models.AllocationResult{
		AllocationID:  id,
		CommodityType: commodity,
		Counterparty:  sales[0].Counterparty,
		AllocatedAt:   sales[0].SoldAt,
		AllocatedBy:   sales[0].SoldBy,
		Allocations:   make([]models.BatchAllocation, 0, len(sales)),
	}
	for _, sale := range sales {
		result.Requested = result.Requested.Add(sale.Kilograms)
		result.Allocations = append(result.Allocations, models.BatchAllocation{
			BatchID:   sale.BatchID,
			BatchCode: sale.BatchCode,
			Kilograms: sale.Kilograms,
		})
	}
	return result
}
