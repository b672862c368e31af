// Package allocation draws stock from dated batches, oldest first.
package allocation

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
)

// Slice is one batch's share of an allocation together with the batch state after deduction.
type Slice struct {
	Batch     models.InventoryBatch
	Kilograms decimal.Decimal
	// Next is the batch as it must be persisted.
	Next models.InventoryBatch
}

// Plan is the full all-or-nothing result of a FIFO walk.
type Plan struct {
	Requested decimal.Decimal
	Slices    []Slice
}

func (p Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, s := range p.Slices {
		total = total.Add(s.Kilograms)
	}
	return total
}

func (p Plan) Allocations() []models.BatchAllocation {
	out := make([]models.BatchAllocation, 0, len(p.Slices))
	for _, s := range p.Slices {
		out = append(out, models.BatchAllocation{
			BatchID:   s.Batch.ID,
			BatchCode: s.Batch.BatchCode,
			Kilograms: s.Kilograms,
		})
	}
	return out
}

// Eligible reports whether b can be drawn from for commodity.
func Eligible(b models.InventoryBatch, commodity string) bool {
	if !strings.EqualFold(b.CommodityType, commodity) || !b.RemainingKilograms.IsPositive() {
		return false
	}
	switch b.Status {
	case models.BatchStatusFilling, models.BatchStatusActive, models.BatchStatusSelling:
		return true
	}
	return false
}

// SortFIFO orders batches by batch date, then creation time, then id.
func SortFIFO(batches []models.InventoryBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.BatchDate.Equal(b.BatchDate) {
			return a.BatchDate.Before(b.BatchDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// PlanFIFO filters, sorts and walks the candidate batches. If the eligible
// total is short of requested it returns an insufficient-stock error carrying
// the available amount, and no plan.
func PlanFIFO(candidates []models.InventoryBatch, commodity string, requested decimal.Decimal) (Plan, error) {
	if !requested.IsPositive() {
		return Plan{}, apperr.Validation("kilograms must be greater than zero")
	}

	eligible := make([]models.InventoryBatch, 0, len(candidates))
	available := decimal.Zero
	for _, b := range candidates {
		if Eligible(b, commodity) {
			eligible = append(eligible, b)
			available = available.Add(b.RemainingKilograms)
		}
	}

	if available.LessThan(requested) {
		return Plan{}, apperr.New(apperr.KindInsufficientStock,
			"requested %s kg of %s but only %s kg is available", requested, commodity, available).
			With("available", available.String()).
			With("requested", requested.String())
	}

	SortFIFO(eligible)

	plan := Plan{Requested: requested}
	remaining := requested
	for _, b := range eligible {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.RemainingKilograms)
		plan.Slices = append(plan.Slices, Slice{
			Batch:     b,
			Kilograms: take,
			Next:      Deduct(b, take),
		})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}
