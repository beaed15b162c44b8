package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, formID int64, req model.VerifyRequest) (*model.Form, error)
}

type FormAdminService interface {
	BulkApprove(ctx context.Context, req model.BulkApproveRequest) ([]model.ApproveOutcome, error)
	List(ctx context.Context, f model.FormFilter) ([]*model.Form, int64, error)
}

// AdminHandler serves the back-office form endpoints.
type AdminHandler struct {
	forms    FormAdminService
	payments PaymentVerifier
}

func RegisterAdminRoutes(e *router.Group, h *AdminHandler, admin xhttp.MiddlewareFunc) {
	e.POST("/forms/{id}/payment/verify", admin(h.VerifyPayment))
	e.POST("/admin/forms/approve", admin(h.BulkApprove))
	e.GET("/admin/forms", admin(h.ListForms))
}

func NewAdminHandler(forms FormAdminService, payments PaymentVerifier) *AdminHandler {
	return &AdminHandler{
		forms:    forms,
		payments: payments,
	}
}

func (h *AdminHandler) VerifyPayment(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	var req model.VerifyRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	f, err := h.payments.VerifyPayment(ctx, id, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, f)
}

type bulkApproveResponse struct {
	Approved int                    `json:"approved"`
	Results  []model.ApproveOutcome `json:"results"`
}

func (h *AdminHandler) BulkApprove(ctx *xhttp.RequestCtx) {
	var req model.BulkApproveRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	results, err := h.forms.BulkApprove(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	resp := bulkApproveResponse{Results: results}
	for _, r := range results {
		if r.Approved {
			resp.Approved++
		}
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}

func (h *AdminHandler) ListForms(ctx *xhttp.RequestCtx) {
	f := model.FormFilter{
		UserID:        queryInt64Ptr(ctx, "user_id"),
		Statuses:      queryList[model.FormStatus](ctx, "status"),
		PaymentStatus: queryList[model.PaymentStatus](ctx, "payment_status"),
		Limit:         queryInt(ctx, "limit"),
		Offset:        queryInt(ctx, "offset"),
	}
	items, total, err := h.forms.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Form]{Items: items, Total: total})
}
