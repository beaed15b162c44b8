package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type PayoutService interface {
	RequestPayout(ctx context.Context, userID int64) (*model.Payout, error)
	ApprovePayout(ctx context.Context, payoutID int64) (*model.Payout, error)
	MarkPaid(ctx context.Context, payoutID int64) (*model.Payout, error)
	RejectPayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error)
	ReversePayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error)
	Get(ctx context.Context, id int64) (*model.Payout, error)
	ListPayouts(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, int64, error)
}

type PayoutHandler struct {
	svc PayoutService
}

// RegisterPayoutRoutes mounts the referrer facing route behind any
// authenticated role and the review routes behind admin.
func RegisterPayoutRoutes(e *router.Group, h *PayoutHandler, member, admin xhttp.MiddlewareFunc) {
	e.POST("/users/{id}/payouts", member(h.RequestPayout))

	e.GET("/admin/payouts", admin(h.ListPayouts))
	e.GET("/admin/payouts/{id}", admin(h.GetPayout))
	e.POST("/admin/payouts/{id}/approve", admin(h.ApprovePayout))
	e.POST("/admin/payouts/{id}/paid", admin(h.MarkPaid))
	e.POST("/admin/payouts/{id}/reject", admin(h.RejectPayout))
	e.POST("/admin/payouts/{id}/reverse", admin(h.ReversePayout))
}

func NewPayoutHandler(svc PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

func (h *PayoutHandler) RequestPayout(ctx *xhttp.RequestCtx) {
	userID, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	// Only admins may request on behalf of someone else.
	role, _ := ctx.UserValue(xhttp.UserValueRole).(string)
	subject, _ := ctx.UserValue(xhttp.UserValueSubject).(string)
	if role != string(model.RoleAdmin) && subject != strconv.FormatInt(userID, 10) {
		writeError(ctx, xhttp.StatusForbidden, "cannot request a payout for another user")
		return
	}

	p, err := h.svc.RequestPayout(ctx, userID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, p)
}

func (h *PayoutHandler) ListPayouts(ctx *xhttp.RequestCtx) {
	f := model.PayoutFilter{
		UserID:   queryInt64Ptr(ctx, "user_id"),
		Statuses: queryList[model.PayoutStatus](ctx, "status"),
		Limit:    queryInt(ctx, "limit"),
		Offset:   queryInt(ctx, "offset"),
	}
	items, total, err := h.svc.ListPayouts(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Payout]{Items: items, Total: total})
}

func (h *PayoutHandler) GetPayout(ctx *xhttp.RequestCtx) {
	h.withPayoutID(ctx, h.svc.Get)
}

func (h *PayoutHandler) ApprovePayout(ctx *xhttp.RequestCtx) {
	h.withPayoutID(ctx, h.svc.ApprovePayout)
}

func (h *PayoutHandler) MarkPaid(ctx *xhttp.RequestCtx) {
	h.withPayoutID(ctx, h.svc.MarkPaid)
}

func (h *PayoutHandler) RejectPayout(ctx *xhttp.RequestCtx) {
	h.withNote(ctx, h.svc.RejectPayout)
}

func (h *PayoutHandler) ReversePayout(ctx *xhttp.RequestCtx) {
	h.withNote(ctx, h.svc.ReversePayout)
}

func (h *PayoutHandler) withPayoutID(ctx *xhttp.RequestCtx, fn func(context.Context, int64) (*model.Payout, error)) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	p, err := fn(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, p)
}

func (h *PayoutHandler) withNote(ctx *xhttp.RequestCtx, fn func(context.Context, int64, string) (*model.Payout, error)) {
	var req model.RejectPayoutRequest
	if len(ctx.PostBody()) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	h.withPayoutID(ctx, func(c context.Context, id int64) (*model.Payout, error) {
		return fn(c, id, req.Note)
	})
}
