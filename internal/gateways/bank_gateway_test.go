package gateways

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// bankServer serves statement lookups from an in-memory listener.
func bankServer(t *testing.T, handler fasthttp.RequestHandler) fasthttp.DialFunc {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(addr string) (net.Conn, error) { return ln.Dial() }
}

func statementHandler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/health":
		ctx.SetBodyString(`{"status":"healthy"}`)
	case strings.HasPrefix(path, statementPath):
		ref := strings.TrimPrefix(path, statementPath)
		if ref != "FT123456" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"reference":"FT123456","amount":500,"paid_at":"2026-01-02T10:00:00Z","payer_name":"Sara"}`)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func testConfig(dial fasthttp.DialFunc, providers ...ProviderConfig) *Config {
	if len(providers) == 0 {
		providers = []ProviderConfig{{Name: "cbe", URL: "http://bank.local", Weight: 100}}
	}
	return &Config{
		Providers:               providers,
		Timeout:                 time.Second,
		MaxRetries:              2,
		RetryDelay:              time.Millisecond,
		MaxConns:                10,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   time.Minute,
		Dial:                    dial,
	}
}

func TestBankClient_LookupReceipt(t *testing.T) {
	client, err := NewBankClient(testConfig(bankServer(t, statementHandler)))
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rec, err := client.LookupReceipt(ctx, "FT123456")
		require.NoError(t, err)
		assert.Equal(t, int64(500), rec.Amount)
		assert.Equal(t, "Sara", rec.PayerName)
		assert.Equal(t, "cbe", rec.Bank)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		_, err := client.LookupReceipt(ctx, "FT000000")
		assert.ErrorIs(t, err, ErrReceiptNotFound)

		stats := client.GetProviderStats()
		require.Len(t, stats, 1)
		assert.Zero(t, stats[0].FailedReqs)
	})
}

func TestBankClient_RetriesAndOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	dial := bankServer(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	})
	client, err := NewBankClient(testConfig(dial))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.LookupReceipt(context.Background(), "FT123456")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReceiptNotFound))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, StateCircuitOpen, client.providers[0].GetState())

	_, err = client.LookupReceipt(context.Background(), "FT123456")
	assert.ErrorIs(t, err, ErrNoAvailableProviders)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBankClient_FailsOverToHealthyProvider(t *testing.T) {
	good := bankServer(t, statementHandler)
	cfg := testConfig(good,
		ProviderConfig{Name: "primary", URL: "http://primary.local", Weight: 100},
		ProviderConfig{Name: "secondary", URL: "http://secondary.local", Weight: 50},
	)
	client, err := NewBankClient(cfg)
	require.NoError(t, err)
	defer client.Close()

	client.providers[0].SetState(StateUnhealthy)

	rec, err := client.LookupReceipt(context.Background(), "FT123456")
	require.NoError(t, err)
	assert.Equal(t, "secondary", rec.Bank)
}

func TestBankClient_HealthCheck(t *testing.T) {
	client, err := NewBankClient(testConfig(bankServer(t, statementHandler)))
	require.NoError(t, err)
	defer client.Close()

	client.providers[0].SetState(StateUnhealthy)
	client.performHealthChecks()
	assert.Equal(t, StateHealthy, client.providers[0].GetState())
}

func TestNewBankClient_Validation(t *testing.T) {
	_, err := NewBankClient(nil)
	assert.EqualError(t, err, "config is required")

	_, err = NewBankClient(&Config{})
	assert.EqualError(t, err, "at least one provider is required")
}

func TestProvider_IsAvailable(t *testing.T) {
	p := NewProvider("test", "http://localhost", 100, &fasthttp.Client{})

	p.SetState(StateDegraded)
	assert.True(t, p.IsAvailable())

	p.SetState(StateUnhealthy)
	assert.False(t, p.IsAvailable())
	assert.Zero(t, p.CalculateScore())

	p.SetState(StateCircuitOpen)
	p.circuitOpenUntil.Store(time.Now().Add(10 * time.Second).Unix())
	assert.False(t, p.IsAvailable())

	p.circuitOpenUntil.Store(time.Now().Add(-time.Second).Unix())
	assert.True(t, p.IsAvailable())
	assert.Equal(t, StateDegraded, p.GetState())
}

func TestProviderMetrics(t *testing.T) {
	m := NewProviderMetrics()
	m.RecordSuccess(100)
	m.RecordSuccess(200)
	m.RecordFailure()

	assert.Equal(t, int64(3), m.TotalRequests.Load())
	assert.InDelta(t, 0.666, m.SuccessRate(), 0.01)
	assert.Equal(t, int64(100), m.AvgLatencyMs())
	assert.Equal(t, int32(1), m.ConsecutiveFails.Load())

	for i := int64(0); i < 100; i++ {
		m.RecordSuccess(i * 10)
	}
	assert.GreaterOrEqual(t, m.P95LatencyMs(), int64(900))
	assert.Zero(t, m.ConsecutiveFails.Load())
}

func TestProviderState_String(t *testing.T) {
	assert.Equal(t, "CIRCUIT_OPEN", StateCircuitOpen.String())
	assert.Equal(t, "UNKNOWN", ProviderState(42).String())
}
