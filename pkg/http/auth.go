package xhttp

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	UserValueSubject   = "auth.subject"
	UserValueRole      = "auth.role"
	UserValueRequestID = "request_id"
)

// TokenVerifier resolves a bearer token into a subject and a role.
type TokenVerifier interface {
	Verify(token string) (subject string, role string, err error)
}

var bearerPrefix = []byte("Bearer ")

// RequireRole rejects requests without a valid bearer token (401) or whose
// token role is not one of roles (403). The subject and role are stored as
// user values for the wrapped handler.
func RequireRole(v TokenVerifier, roles ...string) func(next RequestHandler) RequestHandler {
	return func(next RequestHandler) RequestHandler {
		return func(ctx *RequestCtx) {
			h := ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)
			if !bytes.HasPrefix(h, bearerPrefix) {
				writePlainJSONError(ctx, StatusUnauthorized, "missing bearer token")
				return
			}
			subject, role, err := v.Verify(string(bytes.TrimSpace(h[len(bearerPrefix):])))
			if err != nil {
				writePlainJSONError(ctx, StatusUnauthorized, "invalid token")
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, role) {
				writePlainJSONError(ctx, StatusForbidden, "insufficient role")
				return
			}
			ctx.SetUserValue(UserValueSubject, subject)
			ctx.SetUserValue(UserValueRole, role)
			next(ctx)
		}
	}
}

// RequestIDMiddleware makes sure every request and response carries an X-Request-Id.
func RequestIDMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		rid := requestID(ctx)
		if rid == "" {
			rid = uuid.NewString()
			ctx.Request.Header.Set("X-Request-Id", rid)
		}
		ctx.SetUserValue(UserValueRequestID, rid)
		ctx.Response.Header.Set("X-Request-Id", rid)
		next(ctx)
	}
}

func writePlainJSONError(ctx *RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + msg + `"}`)
}
