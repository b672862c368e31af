package allocation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

// advance moves status forward only.
func advance(current, to models.BatchStatus) models.BatchStatus {
	if to.Rank() > current.Rank() {
		return to
	}
	return current
}

// Deduct returns b after selling kg from it. kg must not exceed the remaining stock.
func Deduct(b models.InventoryBatch, kg decimal.Decimal) models.InventoryBatch {
	next := b
	next.RemainingKilograms = b.RemainingKilograms.Sub(kg)
	if next.RemainingKilograms.IsZero() {
		next.Status = advance(b.Status, models.BatchStatusSoldOut)
	} else {
		next.Status = advance(b.Status, models.BatchStatusSelling)
	}
	return next
}

// AddSource returns b after an inbound delivery of kg. Only Filling and
// Active batches accept stock; a Filling batch becomes Active once it
// reaches its target capacity.
func AddSource(b models.InventoryBatch, kg decimal.Decimal) (models.InventoryBatch, error) {
	if !kg.IsPositive() {
		return b, apperr.Validation("kilograms must be greater than zero")
	}
	switch b.Status {
	case models.BatchStatusFilling, models.BatchStatusActive:
	default:
		return b, apperr.New(apperr.KindValidation,
			"batch %s is %s and no longer accepts stock", b.BatchCode, b.Status).
			With("status", b.Status)
	}

	next := b
	next.TotalKilograms = b.TotalKilograms.Add(kg)
	next.RemainingKilograms = b.RemainingKilograms.Add(kg)
	if b.TargetCapacity.IsPositive() && next.TotalKilograms.GreaterThanOrEqual(b.TargetCapacity) {
		next.Status = advance(b.Status, models.BatchStatusActive)
	}
	return next, nil
}

// NewBatch builds an empty Filling batch.
func NewBatch(in models.CreateBatchInput, now time.Time) (models.InventoryBatch, error) {
	if strings.TrimSpace(in.BatchCode) == "" || strings.TrimSpace(in.CommodityType) == "" {
		return models.InventoryBatch{}, apperr.Validation("batch code and commodity type are required")
	}
	if !in.TargetCapacity.IsPositive() {
		return models.InventoryBatch{}, apperr.Validation("target capacity must be greater than zero")
	}
	if in.BatchDate.IsZero() {
		return models.InventoryBatch{}, apperr.Validation("batch date is required")
	}
	return models.InventoryBatch{
		BatchCode:          strings.TrimSpace(in.BatchCode),
		CommodityType:      strings.TrimSpace(in.CommodityType),
		TargetCapacity:     in.TargetCapacity,
		TotalKilograms:     decimal.Zero,
		RemainingKilograms: decimal.Zero,
		Status:             models.BatchStatusFilling,
		BatchDate:          in.BatchDate,
		CreatedAt:          now,
		Version:            1,
	}, nil
}
