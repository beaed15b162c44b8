package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(availability float64) (*MockBank, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	bank := NewMockBank(availability, 0)
	return bank, SetupRouter(NewHandler(bank))
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestStatements(t *testing.T) {
	_, r := newTestRouter(1)

	w := serve(r, http.MethodPost, "/api/v1/statements", `{"reference":"ft-1234 56","amount":500}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/statements/FT123456", "")
	require.Equal(t, http.StatusOK, w.Code)
	var line StatementLine
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &line))
	assert.Equal(t, "FT123456", line.Reference)
	assert.Equal(t, int64(500), line.Amount)
	assert.False(t, line.PaidAt.IsZero())

	w = serve(r, http.MethodGet, "/api/v1/statements/NOPE0000", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/statements", `{"reference":"X"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutageAndConfig(t *testing.T) {
	bank, r := newTestRouter(0)
	bank.Add(StatementLine{Reference: "FT123456", Amount: 500})

	w := serve(r, http.MethodGet, "/api/v1/statements/FT123456", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(r, http.MethodPut, "/api/v1/config", `{"availability":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/statements/FT123456", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	_, r := newTestRouter(1)
	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
}

func TestSeed(t *testing.T) {
	bank := NewMockBank(1, 0)
	require.NoError(t, seed(bank, "FT111111:500, FT222222:750"))
	line, ok := bank.Get("ft222222")
	require.True(t, ok)
	assert.Equal(t, int64(750), line.Amount)

	assert.Error(t, seed(bank, "FT333333"))
	assert.Error(t, seed(bank, "FT333333:abc"))
}
