package xhttp

import (
	"strings"
	"time"

	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/valyala/fasthttp"
)

const slowThreshold = 500 * time.Millisecond

var skipPaths = []string{"/health", "/metrics"}

type MiddlewareFunc func(next RequestHandler) RequestHandler
type RequestCtx = fasthttp.RequestCtx
type RequestHandler = fasthttp.RequestHandler

func TimeoutMiddleware(timeout time.Duration) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.TimeoutWithCodeHandler(next, timeout, StatusText(StatusRequestTimeout), StatusRequestTimeout)
	}
}

func CompressMiddleware(level int) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		return fasthttp.CompressHandlerBrotliLevel(next, level, level)
	}
}

const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Request-Id"
)

// CORSMiddleware allows any origin and answers preflight requests itself.
func CORSMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		if ctx.IsOptions() {
			ctx.SetStatusCode(StatusOK)
		} else {
			next(ctx)
		}
		// set last: ctx.Error resets headers written by the handler
		ctx.Response.Header.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		ctx.Response.Header.Set("Access-Control-Allow-Methods", corsAllowMethods)
		ctx.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	}
}

func RecoverMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("http panic recovered", "path", string(ctx.Path()), "error", err)
				ctx.Error(StatusText(StatusInternalServerError), StatusInternalServerError)
			}
		}()
		next(ctx)
	}
}

// RequestLoggerMiddleware writes one entry per request: errors for 5xx,
// warnings for 4xx and slow requests, info otherwise. Probe paths are not
// logged.
func RequestLoggerMiddleware(next RequestHandler) RequestHandler {
	return func(ctx *RequestCtx) {
		path := string(ctx.Path())
		if shouldSkip(path) {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)
		latency := time.Since(start)

		status := ctx.Response.StatusCode()
		fields := []any{
			"status", status,
			"method", string(ctx.Method()),
			"path", path,
			"latency_ms", latency.Milliseconds(),
			"bytes_out", len(ctx.Response.Body()),
			"ip", ctx.RemoteIP().String(),
		}
		if rid := requestID(ctx); rid != "" {
			fields = append(fields, "request_id", rid)
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400 || latency > slowThreshold:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}

func shouldSkip(p string) bool {
	for _, sp := range skipPaths {
		if strings.HasPrefix(p, sp) {
			return true
		}
	}
	return false
}

// requestID echoes the caller's X-Request-Id. Header lookup is case
// insensitive.
func requestID(ctx *RequestCtx) string {
	return string(ctx.Request.Header.Peek("X-Request-Id"))
}
