package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHealthHandler_GetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		api := newTestAPI(t)
		api.health.On("Check", mock.Anything).Return(map[string]string{"database": "ok", "redis": "disabled"})

		ctx := api.do("GET", "/api/v1/health", "", nil)
		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Equal(t, "ok", decode[map[string]string](t, ctx)["database"])
	})

	t.Run("redis down", func(t *testing.T) {
		api := newTestAPI(t)
		api.health.On("Check", mock.Anything).Return(map[string]string{"database": "ok", "redis": "dial tcp: refused"})

		ctx := api.do("GET", "/api/v1/health", "", nil)
		assert.Equal(t, 503, ctx.Response.StatusCode())
	})
}
