// Package receipts renders allocation receipts and archives them to object storage.
package receipts

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"coffee-backend/internal/models"
	"coffee-backend/internal/timeutil"
)

// Render produces the PDF receipt for one allocation.
func Render(result *models.AllocationResult) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Stock Allocation Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format(timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Allocation", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(190, 7, fmt.Sprintf("Reference: %s", result.AllocationID), "LRB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Commodity: %s", result.CommodityType), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Buyer: %s", result.Counterparty), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Date: %s", result.AllocatedAt.In(timeutil.Local).Format(timeutil.DisplayLayout)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Issued by: %s", result.AllocatedBy), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Batch table
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(20, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(110, 7, "Batch", "1", 0, "C", true, 0, "")
	pdf.CellFormat(60, 7, "Kilograms", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	for i, a := range result.Allocations {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(110, 6, a.BatchCode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, a.Kilograms.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(130, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(60, 8, result.Requested.StringFixed(2), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectKey is where the receipt of an allocation is stored.
func ObjectKey(allocationID string) string {
	return fmt.Sprintf("receipts/allocations/%s.pdf", allocationID)
}
