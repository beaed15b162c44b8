package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type UserService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.RegisterResult, error)
	Get(ctx context.Context, id int64) (*model.User, error)
	GetEarnings(ctx context.Context, id int64) (*model.Earnings, error)
}

type ReferralLister interface {
	ListReferrals(ctx context.Context, referrerID int64, f model.ReferralFilter) ([]*model.Referral, int64, error)
}

type UserHandler struct {
	users     UserService
	referrals ReferralLister
}

func RegisterUserRoutes(e *router.Group, h *UserHandler) {
	e.POST("/users", h.Register)
	e.GET("/users/{id}", h.GetUser)
	e.GET("/users/{id}/earnings", h.GetEarnings)
	e.GET("/users/{id}/referrals", h.ListReferrals)
}

func NewUserHandler(users UserService, referrals ReferralLister) *UserHandler {
	return &UserHandler{
		users:     users,
		referrals: referrals,
	}
}

func (h *UserHandler) Register(ctx *xhttp.RequestCtx) {
	var req model.RegisterRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.users.Register(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, res)
}

func (h *UserHandler) GetUser(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	u, err := h.users.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, u)
}

func (h *UserHandler) GetEarnings(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	e, err := h.users.GetEarnings(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, e)
}

func (h *UserHandler) ListReferrals(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	f := model.ReferralFilter{
		Limit:  queryInt(ctx, "limit"),
		Offset: queryInt(ctx, "offset"),
	}
	if v := query(ctx, "reward_status"); v != "" {
		rs := model.RewardStatus(v)
		f.RewardStatus = &rs
	}
	if v := query(ctx, "payout_status"); v != "" {
		ps := model.PayoutStatus(v)
		f.PayoutStatus = &ps
	}

	items, total, err := h.referrals.ListReferrals(ctx, id, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Referral]{Items: items, Total: total})
}
