package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"coffee-backend/internal/apperr"
	"coffee-backend/internal/models"
	"coffee-backend/internal/services"
	"coffee-backend/pkg/utils"
)

type requestService interface {
	Submit(ctx context.Context, in models.SubmitRequestInput, actor services.Actor) (*models.ApprovalRequest, error)
	Get(ctx context.Context, kind models.RequestKind, id int64) (*models.ApprovalRequest, error)
	List(ctx context.Context, kind models.RequestKind, filter models.RequestFilter) ([]*models.ApprovalRequest, error)
}

type approvalService interface {
	RecordApproval(ctx context.Context, kind models.RequestKind, id int64, in models.RecordApprovalInput, actor services.Actor) (*models.ApprovalRequest, error)
}

// RequestHandler serves approval requests and their stage decisions
type RequestHandler struct {
	requests  requestService
	approvals approvalService
	log       *zap.Logger
}

func NewRequestHandler(requests requestService, approvals approvalService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, approvals: approvals, log: orNop(log)}
}

// Submit handles POST /api/requests
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in models.SubmitRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	req, err := h.requests.Submit(r.Context(), in, actorFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusCreated, req)
}

// List handles GET /api/requests/{kind}
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, err := requestKind(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	q := r.URL.Query()
	filter := models.RequestFilter{
		Status:      models.RequestStatus(q.Get("status")),
		Type:        models.RequestType(q.Get("type")),
		RequestedBy: q.Get("requested_by"),
	}
	requests, err := h.requests.List(r.Context(), kind, filter)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if requests == nil {
		requests = []*models.ApprovalRequest{}
	}
	utils.JSON(w, http.StatusOK, requests)
}

// Get handles GET /api/requests/{kind}/{id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, err := requestKind(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	req, err := h.requests.Get(r.Context(), kind, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, req)
}

// RecordApproval handles POST /api/requests/{kind}/{id}/approvals
func (h *RequestHandler) RecordApproval(w http.ResponseWriter, r *http.Request) {
	kind, err := requestKind(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	var in models.RecordApprovalInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	req, err := h.approvals.RecordApproval(r.Context(), kind, id, in, actorFrom(r))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	utils.JSON(w, http.StatusOK, req)
}

func requestKind(r *http.Request) (models.RequestKind, error) {
	raw := mux.Vars(r)["kind"]
	kind, ok := models.ParseRequestKind(raw)
	if !ok {
		return "", apperr.Validation("unknown request kind %q", raw).With("field", "kind")
	}
	return kind, nil
}
