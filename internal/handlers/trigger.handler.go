package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/rent-reminders/internal/model"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
)

type TriggerService interface {
	List(ctx context.Context, activeOnly bool) ([]*model.Trigger, error)
	Upsert(ctx context.Context, p model.TriggerUpsertRequest) (*model.Trigger, error)
}

type TriggerHandler struct {
	svc TriggerService
}

func NewTriggerHandler(svc TriggerService) *TriggerHandler {
	return &TriggerHandler{svc: svc}
}

func RegisterTriggerRoutes(g *router.Group, h *TriggerHandler) {
	g.GET("/triggers", h.List)
	g.POST("/triggers", h.Upsert)
	g.PUT("/triggers/{name}", h.Update)
}

func (h *TriggerHandler) List(ctx *xhttp.RequestCtx) {
	activeOnly := false
	if v := query(ctx, "active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(ctx, 400, "active must be true or false")
			return
		}
		activeOnly = b
	}
	items, err := h.svc.List(ctx, activeOnly)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, newList(items))
}

func (h *TriggerHandler) Upsert(ctx *xhttp.RequestCtx) {
	var req model.TriggerUpsertRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := h.svc.Upsert(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, t)
}

// Update replaces the trigger named in the path; a name in the body is ignored.
func (h *TriggerHandler) Update(ctx *xhttp.RequestCtx) {
	var req model.TriggerUpsertRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	req.Name = pathParam(ctx, "name")
	t, err := h.svc.Upsert(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, t)
}
