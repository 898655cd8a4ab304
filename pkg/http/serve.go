package xhttp

import (
	"reflect"
	"runtime"
	"time"

	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/valyala/fasthttp"
)

type RequestHeader = fasthttp.RequestHeader
type ResponseHeader = fasthttp.ResponseHeader
type Server = fasthttp.Server

// ServerOption holds the fasthttp knobs the reminder binaries tune.
type ServerOption struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxRequestBodySize int
	Concurrency        int
	Name               string
}

var DefaultServerOption = ServerOption{
	ReadTimeout:  5 * time.Second,
	WriteTimeout: 35 * time.Second,
	// idle keep-alive connections are the first thing to exhaust open files
	IdleTimeout:        10 * time.Second,
	MaxRequestBodySize: 1 << 20,
	Concurrency:        10_000,
}

type Option func(*ServerOption)

// WithTimeouts overrides read and write timeouts. Zero keeps the default.
func WithTimeouts(read, write time.Duration) Option {
	return func(o *ServerOption) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

func WithMaxBodySize(n int) Option {
	return func(o *ServerOption) {
		if n > 0 {
			o.MaxRequestBodySize = n
		}
	}
}

func WithName(name string) Option {
	return func(o *ServerOption) { o.Name = name }
}

// Engine couples a router with a fasthttp server and an ordered middleware
// chain.
type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

// CreateServer returns an engine with the default router and the package
// logger wired into fasthttp.
func CreateServer(opts ...Option) *Engine {
	option := DefaultServerOption
	for _, o := range opts {
		o(&option)
	}
	return &Engine{
		Router: CreateDefaultRouter(),
		Server: &fasthttp.Server{
			Name:                          option.Name,
			ReadTimeout:                   option.ReadTimeout,
			WriteTimeout:                  option.WriteTimeout,
			IdleTimeout:                   option.IdleTimeout,
			MaxRequestBodySize:            option.MaxRequestBodySize,
			Concurrency:                   option.Concurrency,
			TCPKeepalive:                  true,
			DisablePreParseMultipartForm:  true,
			NoDefaultServerHeader:         true,
			NoDefaultDate:                 true,
			CloseOnShutdown:               true,
			DisableHeaderNamesNormalizing: false,
			ErrorHandler: func(ctx *RequestCtx, err error) {
				logger.Warn("http connection error", "remote", ctx.RemoteAddr().String(), "error", err)
			},
			Logger: logger.GetLogger(),
		},
		option: option,
	}
}

// Use appends middleware to the chain. The first one added runs outermost.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Handler returns the router wrapped in the registered middleware.
func (e *Engine) Handler() RequestHandler {
	h := RequestHandler(e.Router.Handler)
	for i := len(e.middle) - 1; i >= 0; i-- {
		h = e.middle[i](h)
	}
	return h
}

func (e *Engine) ListenAndServe(addr string) error {
	for method, paths := range e.Router.List() {
		for _, p := range paths {
			logger.Debug("http route registered", "method", method, "path", p)
		}
	}
	for i, m := range e.middle {
		logger.Debug("http middleware registered", "order", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}

	e.Server.Handler = e.Handler()
	logger.Info("http server listening", "addr", addr, "read_timeout", e.option.ReadTimeout, "write_timeout", e.option.WriteTimeout)
	return e.Server.ListenAndServe(addr)
}

// Shutdown waits for in-flight requests and closes idle connections.
func (e *Engine) Shutdown() {
	logger.Info("http server shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
}
