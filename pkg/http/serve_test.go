package xhttp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestNewServer_FillsDefaults(t *testing.T) {
	e := NewServer(ServerOption{ReadTimeout: time.Second, ReadBufferSize: 16 * 1024})

	assert.Equal(t, time.Second, e.Server.ReadTimeout)
	assert.Equal(t, 16*1024, e.Server.ReadBufferSize)
	assert.Equal(t, DefaultServerOption().WriteTimeout, e.Server.WriteTimeout)
	assert.Equal(t, DefaultServerOption().MaxRequestBodySize, e.Server.MaxRequestBodySize)
	assert.Equal(t, DefaultServerOption().Concurrency, e.Server.Concurrency)
}

func TestEngine_MiddlewareOrder(t *testing.T) {
	e := CreateServer()
	var order []string
	mark := func(name string) MiddlewareFunc {
		return func(next RequestHandler) RequestHandler {
			return func(ctx *RequestCtx) {
				order = append(order, name)
				next(ctx)
			}
		}
	}
	e.Use(mark("outer"))
	e.Use(mark("inner"))
	e.GET("/x", func(ctx *RequestCtx) { order = append(order, "handler") })

	var req fasthttp.Request
	req.SetRequestURI("/x")
	ctx := &RequestCtx{}
	ctx.Init(&req, nil, nil)
	e.Handler()(ctx)

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestEngine_Serve(t *testing.T) {
	e := CreateServer()
	e.Use(RecoverMiddleware)
	e.Use(RequestIDMiddleware)
	e.GET("/ping", func(ctx *RequestCtx) { ctx.SetBodyString("pong") })
	e.GET("/boom", func(ctx *RequestCtx) { panic("boom") })

	ln := fasthttputil.NewInmemoryListener()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Serve(ln)
	}()
	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	t.Cleanup(func() {
		client.CloseIdleConnections()
		e.Shutdown()
		<-done
	})

	do := func(method, path string) *fasthttp.Response {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		req.Header.SetMethod(method)
		req.SetRequestURI("http://engine.test" + path)
		resp := &fasthttp.Response{}
		require.NoError(t, client.DoTimeout(req, resp, time.Second))
		return resp
	}

	resp := do(fasthttp.MethodGet, "/ping")
	assert.Equal(t, StatusOK, resp.StatusCode())
	assert.Equal(t, "pong", string(resp.Body()))
	assert.NotEmpty(t, resp.Header.Peek("X-Request-Id"))

	resp = do(fasthttp.MethodGet, "/missing")
	assert.Equal(t, StatusNotFound, resp.StatusCode())
	assert.JSONEq(t, `{"error":"Not Found"}`, string(resp.Body()))

	resp = do(fasthttp.MethodPost, "/ping")
	assert.Equal(t, StatusMethodNotAllowed, resp.StatusCode())
	assert.JSONEq(t, `{"error":"Method Not Allowed"}`, string(resp.Body()))

	resp = do(fasthttp.MethodGet, "/boom")
	assert.Equal(t, StatusInternalServerError, resp.StatusCode())
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, string(resp.Body()))
}

func TestRequestID_PrefersStoredValue(t *testing.T) {
	ctx := &RequestCtx{}
	ctx.Request.Header.Set("X-Request-Id", "from-header")
	assert.Equal(t, "from-header", requestID(ctx))

	ctx.SetUserValue(UserValueRequestID, "stored")
	assert.Equal(t, "stored", requestID(ctx))
}
