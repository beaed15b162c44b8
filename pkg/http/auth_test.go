package xhttp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticVerifier map[string]string

func (s staticVerifier) Verify(token string) (string, string, error) {
	role, ok := s[token]
	if !ok {
		return "", "", errors.New("unknown token")
	}
	return "42", role, nil
}

func TestRequireRole(t *testing.T) {
	v := staticVerifier{"admin-token": "admin", "user-token": "user"}
	var reached bool
	h := RequireRole(v, "admin")(func(ctx *RequestCtx) {
		reached = true
		assert.Equal(t, "42", ctx.UserValue(UserValueSubject))
		assert.Equal(t, "admin", ctx.UserValue(UserValueRole))
		ctx.SetStatusCode(StatusOK)
	})

	tests := []struct {
		name    string
		header  string
		status  int
		reached bool
	}{
		{"missing header", "", StatusUnauthorized, false},
		{"wrong scheme", "Basic abc", StatusUnauthorized, false},
		{"unknown token", "Bearer nope", StatusUnauthorized, false},
		{"wrong role", "Bearer user-token", StatusForbidden, false},
		{"admin", "Bearer admin-token", StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			ctx := &RequestCtx{}
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			h(ctx)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			assert.Equal(t, tt.reached, reached)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	h := RequestIDMiddleware(func(ctx *RequestCtx) {})

	t.Run("generates id", func(t *testing.T) {
		ctx := &RequestCtx{}
		h(ctx)
		assert.NotEmpty(t, string(ctx.Response.Header.Peek("X-Request-Id")))
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		ctx := &RequestCtx{}
		ctx.Request.Header.Set("X-Request-Id", "abc")
		h(ctx)
		assert.Equal(t, "abc", string(ctx.Response.Header.Peek("X-Request-Id")))
		assert.Equal(t, "abc", ctx.UserValue(UserValueRequestID))
	})
}
