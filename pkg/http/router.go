package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type Router = router.Router

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter answers unknown paths and wrong methods with a JSON
// error body and turns handler panics into 500s.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectTrailingSlash = true
	r.RedirectFixedPath = true
	r.SaveMatchedRoutePath = true
	r.HandleMethodNotAllowed = true
	r.HandleOPTIONS = false
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = methodNotAllowedHandler
	r.PanicHandler = func(ctx *RequestCtx, v interface{}) {
		logger.Error("http handler panicked", "path", string(ctx.Path()), "panic", v)
		errorBody(ctx, StatusInternalServerError)
	}
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	errorBody(ctx, StatusNotFound)
}

func methodNotAllowedHandler(ctx *RequestCtx) {
	errorBody(ctx, StatusMethodNotAllowed)
}

func errorBody(ctx *RequestCtx, status int) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"error":"` + StatusText(status) + `"}`)
}
