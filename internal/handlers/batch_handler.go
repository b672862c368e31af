package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"coffee-backend/internal/models"
	"coffee-backend/internal/receipts"
	"coffee-backend/pkg/utils"
)

type batchService interface {
	Create(ctx context.Context, in models.CreateBatchInput, actor string) (*models.InventoryBatch, error)
	Get(ctx context.Context, id int64) (*models.InventoryBatch, error)
	List(ctx context.Context, commodity string) ([]models.InventoryBatch, error)
	AddToBatch(ctx context.Context, batchID int64, in models.AddSourceInput, actor string) (*models.InventoryBatch, error)
	Allocate(ctx context.Context, in models.AllocateInput, actor string) (*models.AllocationResult, error)
	Receipt(ctx context.Context, allocationID string) (*models.AllocationResult, error)
}

// BatchHandler serves inventory batches and stock allocations
type BatchHandler struct {
	batches batchService
	log     *zap.Logger
}

func NewBatchHandler(batches batchService, log *zap.Logger) *BatchHandler {
	return &BatchHandler{batches: batches, log: orNop(log)}
}

// Create handles POST /api/batches
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateBatchInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	batch, err := h.batches.Create(r.Context(), in, actorFrom(r).Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusCreated, batch)
}

// List handles GET /api/batches?commodity=
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.batches.List(r.Context(), r.URL.Query().Get("commodity"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if batches == nil {
		batches = []models.InventoryBatch{}
	}
	utils.JSON(w, http.StatusOK, batches)
}

// Get handles GET /api/batches/{id}
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	batch, err := h.batches.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, batch)
}

// AddSource handles POST /api/batches/{id}/sources. A repeated
// Idempotency-Key returns the batch without adding stock again.
func (h *BatchHandler) AddSource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var in models.AddSourceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	in.IdempotencyKey = idempotencyKey(r, in.IdempotencyKey)
	batch, err := h.batches.AddToBatch(r.Context(), id, in, actorFrom(r).Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if in.IdempotencyKey != "" {
		w.Header().Set("Idempotency-Key", in.IdempotencyKey)
	}
	utils.JSON(w, http.StatusOK, batch)
}

// Allocate handles POST /api/allocations. The Idempotency-Key header, or
// allocation_id in the body, must be a UUID; it becomes the allocation id.
func (h *BatchHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var in models.AllocateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	in.AllocationID = idempotencyKey(r, in.AllocationID)
	result, err := h.batches.Allocate(r.Context(), in, actorFrom(r).Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	w.Header().Set("Idempotency-Key", result.AllocationID)
	utils.JSON(w, status, result)
}

// Receipt handles GET /api/allocations/{id}/receipt. It returns the PDF
// unless the client asks for JSON.
func (h *BatchHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	result, err := h.batches.Receipt(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		utils.JSON(w, http.StatusOK, result)
		return
	}

	body, err := receipts.Render(result)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", contentDisposition("allocation-"+id+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
