package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/fasthttp/router"
	"github.com/nimasrn/rent-reminders/internal/model"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type CronRunner interface {
	Run(ctx context.Context) (*model.CronResult, error)
}

type CronHandler struct {
	runner CronRunner
	secret string
}

// NewCronHandler guards the cron entry point with a shared bearer secret.
// With an empty secret every call is refused.
func NewCronHandler(runner CronRunner, secret string) *CronHandler {
	if secret == "" {
		logger.Warn("CRON_SECRET is not set, the cron endpoint will refuse every call")
	}
	return &CronHandler{runner: runner, secret: secret}
}

func RegisterCronRoutes(g *router.Group, h *CronHandler) {
	g.POST("/cron/reminders", h.Run)
}

func (h *CronHandler) authorized(ctx *xhttp.RequestCtx) bool {
	if h.secret == "" {
		return false
	}
	got := ctx.Request.Header.Peek("Authorization")
	want := []byte("Bearer " + h.secret)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func (h *CronHandler) Run(ctx *xhttp.RequestCtx) {
	if !h.authorized(ctx) {
		writeError(ctx, 401, "unauthorized")
		return
	}
	res, err := h.runner.Run(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, res)
}
