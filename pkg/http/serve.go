package xhttp

import (
	"net"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var DefaultServerOption = ServerOption{
	Handler:            NotFoundHandler,
	Name:               "btc-invoice-gateway",
	IdleTimeout:        time.Second * 10,
	ReadTimeout:        time.Millisecond * 2500,
	WriteTimeout:       time.Millisecond * 2500,
	MaxRequestBodySize: 1 * 1024 * 1024, // 1MB, webhook payloads are small
	ReadBufferSize:     1024 * 4,
	WriteBufferSize:    1024 * 4,
	Concurrency:        30_000,
	MaxConnsPerIP:      10_000,
	TCPKeepalive:       true,
	CloseOnShutdown:    true,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		logger.Warn("[xhttp] connection error", "error", err)
	},
}

type ServerOption struct {
	Handler RequestHandler
	Name    string

	// idle keep-alive connections are dropped after this long
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxRequestBodySize int
	ReadBufferSize     int
	WriteBufferSize    int
	Concurrency        int
	MaxConnsPerIP      int
	TCPKeepalive       bool
	CloseOnShutdown    bool

	ErrorHandler func(ctx *RequestCtx, err error)
}

type Server = fasthttp.Server

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            options.Handler,
		ErrorHandler:       options.ErrorHandler,
		Name:               options.Name,
		Concurrency:        options.Concurrency,
		ReadBufferSize:     options.ReadBufferSize,
		WriteBufferSize:    options.WriteBufferSize,
		ReadTimeout:        options.ReadTimeout,
		WriteTimeout:       options.WriteTimeout,
		IdleTimeout:        options.IdleTimeout,
		MaxConnsPerIP:      options.MaxConnsPerIP,
		MaxRequestBodySize: options.MaxRequestBodySize,
		TCPKeepalive:       options.TCPKeepalive,
		CloseOnShutdown:    options.CloseOnShutdown,
		NoDefaultDate:      true,
		Logger:             logger.GetLogger(),
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: CreateDefaultRouter(),
		option: options,
	}
}

func CreateServer() *Engine {
	return NewServer(DefaultServerOption)
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// Serve runs the engine on an existing listener, e.g. an in-memory one in tests.
func (e *Engine) Serve(ln net.Listener) error {
	e.DoRouting()
	return e.Server.Serve(ln)
}

// DoRouting resolves the router and the middleware chain into the server handler.
// The first registered middleware is the outermost one.
func (e *Engine) DoRouting() RequestHandler {
	for method, route := range e.Router.List() {
		for _, r := range route {
			logger.Debug("[xhttp] route registered", "method", method, "path", r)
		}
	}
	handler := e.Router.Handler
	chain := slices.Clone(e.middle)
	slices.Reverse(chain)
	for i, m := range chain {
		handler = m(handler)
		logger.Debug("[xhttp] middleware registered", "index", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = handler
	return handler
}

func (e *Engine) CloseOnSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		e.Shutdown()
	}()
}

// Use adds middleware to the chain which is run for every request.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown gracefully shuts down the server without interrupting any active connections.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
