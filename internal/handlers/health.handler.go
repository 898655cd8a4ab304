package handlers

import (
	"context"

	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type HealthService interface {
	Check(ctx context.Context) error
}

type HealthHandler struct {
	svc HealthService
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if err := h.svc.Check(ctx); err != nil {
		logger.Error("health check failed", "error", err)
		writeJSON(ctx, 503, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "healthy"})
}
