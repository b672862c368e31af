package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusFilling BatchStatus = "Filling"
	BatchStatusActive  BatchStatus = "Active"
	BatchStatusSelling BatchStatus = "Selling"
	BatchStatusSoldOut BatchStatus = "SoldOut"
)

// Rank orders batch statuses; a batch never moves to a lower rank.
func (s BatchStatus) Rank() int {
	switch s {
	case BatchStatusFilling:
		return 0
	case BatchStatusActive:
		return 1
	case BatchStatusSelling:
		return 2
	case BatchStatusSoldOut:
		return 3
	}
	return -1
}

type InventoryBatch struct {
	ID                 int64           `json:"id"`
	BatchCode          string          `json:"batch_code"`
	CommodityType      string          `json:"commodity_type"`
	TargetCapacity     decimal.Decimal `json:"target_capacity"`
	TotalKilograms     decimal.Decimal `json:"total_kilograms"`
	RemainingKilograms decimal.Decimal `json:"remaining_kilograms"`
	Status             BatchStatus     `json:"status"`
	BatchDate          time.Time       `json:"batch_date"`
	CreatedAt          time.Time       `json:"created_at"`
	Version            int             `json:"version"`
}

// BatchSource is an inbound delivery added to a batch.
type BatchSource struct {
	ID           int64           `json:"id"`
	BatchID      int64           `json:"batch_id"`
	SupplierName string          `json:"supplier_name"`
	Kilograms    decimal.Decimal `json:"kilograms"`
	ReceivedAt   time.Time       `json:"received_at"`
	RecordedBy   string          `json:"recorded_by"`
	// IdempotencyKey is unique across all deliveries.
	IdempotencyKey string `json:"idempotency_key"`
}

// BatchSale is one FIFO slice of an allocation.
type BatchSale struct {
	ID           int64           `json:"id"`
	AllocationID string          `json:"allocation_id"`
	BatchID      int64           `json:"batch_id"`
	BatchCode    string          `json:"batch_code"`
	Kilograms    decimal.Decimal `json:"kilograms"`
	Counterparty string          `json:"counterparty"`
	SoldAt       time.Time       `json:"sold_at"`
	SoldBy       string          `json:"sold_by"`
}

type CreateBatchInput struct {
	BatchCode      string          `json:"batch_code" validate:"required,max=50"`
	CommodityType  string          `json:"commodity_type" validate:"required,max=50"`
	TargetCapacity decimal.Decimal `json:"target_capacity"`
	BatchDate      time.Time       `json:"batch_date" validate:"required"`
}

type AddSourceInput struct {
	SupplierName   string          `json:"supplier_name" validate:"required,max=200"`
	Kilograms      decimal.Decimal `json:"kilograms"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=100"`
}

type AllocateInput struct {
	CommodityType string          `json:"commodity_type" validate:"required"`
	Kilograms     decimal.Decimal `json:"kilograms"`
	Counterparty  string          `json:"counterparty" validate:"required,max=200"`
	// AllocationID doubles as the idempotency key. Empty means the service picks one.
	AllocationID string `json:"allocation_id"`
}

// BatchUpdate is one version-guarded batch write of an allocation.
type BatchUpdate struct {
	Next            InventoryBatch
	ExpectedVersion int
}

// BatchAllocation is one (batch, kilograms) pair in an allocation receipt.
type BatchAllocation struct {
	BatchID   int64           `json:"batch_id"`
	BatchCode string          `json:"batch_code"`
	Kilograms decimal.Decimal `json:"kilograms"`
}

type AllocationResult struct {
	AllocationID  string            `json:"allocation_id"`
	CommodityType string            `json:"commodity_type"`
	Counterparty  string            `json:"counterparty"`
	Requested     decimal.Decimal   `json:"requested_kilograms"`
	Allocations   []BatchAllocation `json:"allocations"`
	AllocatedAt   time.Time         `json:"allocated_at"`
	AllocatedBy   string            `json:"allocated_by"`
	Replayed      bool              `json:"replayed"`
}
