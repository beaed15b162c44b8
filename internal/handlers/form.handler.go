package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type FormService interface {
	Create(ctx context.Context, req model.FormCreateRequest) (*model.Form, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*model.FormTracking, error)
}

type ReceiptSubmitter interface {
	SubmitReceipt(ctx context.Context, formID int64, r model.Receipt) (*model.Form, error)
}

type FormHandler struct {
	forms    FormService
	payments ReceiptSubmitter
}

func RegisterFormRoutes(e *router.Group, h *FormHandler) {
	e.POST("/forms", h.CreateForm)
	e.GET("/forms/track/{tracking_id}", h.TrackForm)
	e.POST("/forms/{id}/receipt", h.SubmitReceipt)
}

func NewFormHandler(forms FormService, payments ReceiptSubmitter) *FormHandler {
	return &FormHandler{
		forms:    forms,
		payments: payments,
	}
}

func (h *FormHandler) CreateForm(ctx *xhttp.RequestCtx) {
	var req model.FormCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	f, err := h.forms.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, f)
}

func (h *FormHandler) TrackForm(ctx *xhttp.RequestCtx) {
	trackingID, _ := ctx.UserValue("tracking_id").(string)
	t, err := h.forms.GetByTrackingID(ctx, trackingID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, t)
}

type receiptRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at"`
	PayerName string `json:"payer_name"`
}

func (h *FormHandler) SubmitReceipt(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req receiptRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	r := model.Receipt{Reference: req.Reference, Amount: req.Amount, PayerName: req.PayerName}
	if req.PaidAt != "" {
		paidAt, err := parseTime(req.PaidAt)
		if err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "paid_at must be RFC3339 or YYYY-MM-DD")
			return
		}
		r.PaidAt = paidAt
	}

	f, err := h.payments.SubmitReceipt(ctx, id, r)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, f)
}
