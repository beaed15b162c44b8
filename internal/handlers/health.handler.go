package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type HealthService interface {
	Check(ctx context.Context) map[string]string
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	checks := h.svc.Check(ctx)
	status := xhttp.StatusOK
	for _, v := range checks {
		if v != "ok" && v != "disabled" {
			status = xhttp.StatusServiceUnavailable
		}
	}
	writeJSON(ctx, status, checks)
}
