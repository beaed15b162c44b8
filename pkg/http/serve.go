package xhttp

import (
	"net"
	"slices"
	"time"

	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

type Server = fasthttp.Server

// ServerOption holds the fasthttp tuning the binaries expose through config.
// Zero fields fall back to DefaultServerOption.
type ServerOption struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ReadBufferSize     int // also the max header size
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
}

func DefaultServerOption() ServerOption {
	return ServerOption{
		ReadTimeout:        2500 * time.Millisecond,
		WriteTimeout:       2500 * time.Millisecond,
		IdleTimeout:        10 * time.Second,
		ReadBufferSize:     4 * 1024,
		WriteBufferSize:    4 * 1024,
		MaxRequestBodySize: 4 * 1024 * 1024,
		Concurrency:        30_000,
	}
}

func (o ServerOption) withDefaults() ServerOption {
	d := DefaultServerOption()
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = d.WriteBufferSize
	}
	if o.MaxRequestBodySize <= 0 {
		o.MaxRequestBodySize = d.MaxRequestBodySize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Engine is a router plus the fasthttp server that serves it behind the
// registered middleware.
type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func NewServer(options ServerOption) *Engine {
	options = options.withDefaults()
	return &Engine{
		Router: CreateDefaultRouter(),
		Server: &fasthttp.Server{
			ReadTimeout:                  options.ReadTimeout,
			WriteTimeout:                 options.WriteTimeout,
			IdleTimeout:                  options.IdleTimeout,
			ReadBufferSize:               options.ReadBufferSize,
			WriteBufferSize:              options.WriteBufferSize,
			MaxRequestBodySize:           options.MaxRequestBodySize,
			Concurrency:                  options.Concurrency,
			TCPKeepalive:                 true,
			DisablePreParseMultipartForm: true,
			NoDefaultServerHeader:        true,
			NoDefaultDate:                true,
			NoDefaultContentType:         true,
			CloseOnShutdown:              true,
			Logger:                       logger.GetLogger(),
			ErrorHandler: func(ctx *RequestCtx, err error) {
				logger.Warn("[xhttp] connection error", "remote", ctx.RemoteAddr().String(), "error", err)
				writePlainJSONError(ctx, StatusBadRequest, StatusText(StatusBadRequest))
			},
		},
	}
}

// CreateServer returns an engine with the default tuning.
func CreateServer() *Engine {
	return NewServer(DefaultServerOption())
}

// Use appends middleware. The first one added is the outermost.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Handler returns the router wrapped in the middleware chain.
func (e *Engine) Handler() RequestHandler {
	h := e.Router.Handler
	for _, m := range slices.Backward(e.middle) {
		h = m(h)
	}
	return h
}

func (e *Engine) prepare() {
	for method, paths := range e.Router.List() {
		for _, p := range paths {
			logger.Debug("[xhttp] route registered", "method", method, "path", p)
		}
	}
	e.Server.Handler = e.Handler()
}

func (e *Engine) ListenAndServe(addr string) error {
	e.prepare()
	logger.Info("[xhttp] server is listening", "addr", addr, "middleware", len(e.middle))
	return e.Server.ListenAndServe(addr)
}

// Serve runs the engine on an existing listener.
func (e *Engine) Serve(ln net.Listener) error {
	e.prepare()
	return e.Server.Serve(ln)
}

// Shutdown waits for active requests to finish, then closes the listeners.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] shutdown failed", "error", err)
	}
}
