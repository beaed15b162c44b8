package handlers

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
)

type Handlers struct {
	Health  *HealthHandler
	Users   *UserHandler
	Forms   *FormHandler
	Admin   *AdminHandler
	Payouts *PayoutHandler
}

// Register mounts every route on g. Admin routes need an admin token,
// payout requests any valid token.
func Register(g *router.Group, h Handlers, tokens xhttp.TokenVerifier) {
	admin := xhttp.RequireRole(tokens, string(model.RoleAdmin))
	member := xhttp.RequireRole(tokens, string(model.RoleUser), string(model.RoleAgent), string(model.RoleAdmin))

	RegisterHealthRoutes(g, h.Health)
	RegisterUserRoutes(g, h.Users)
	RegisterFormRoutes(g, h.Forms)
	RegisterAdminRoutes(g, h.Admin, admin)
	RegisterPayoutRoutes(g, h.Payouts, member, admin)
}
