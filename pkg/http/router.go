package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
)

type Router = router.Router

// CreateDefaultRouter returns a router whose fallbacks answer in the API's
// {"error": "..."} shape.
func CreateDefaultRouter() *Router {
	r := router.New()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.PanicHandler = PanicHandler
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	writePlainJSONError(ctx, StatusNotFound, StatusText(StatusNotFound))
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	writePlainJSONError(ctx, StatusMethodNotAllowed, StatusText(StatusMethodNotAllowed))
}

func PanicHandler(ctx *RequestCtx, v interface{}) {
	logger.Error("[xhttp] panic in handler", "path", string(ctx.Path()), "request_id", requestID(ctx), "panic", v)
	writePlainJSONError(ctx, StatusInternalServerError, StatusText(StatusInternalServerError))
}
