package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/rent-reminders/internal/model"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
)

type ReminderGenerator interface {
	Generate(ctx context.Context, month, year int) (*model.GenerationResult, error)
	GenerateFor(ctx context.Context, date time.Time) (*model.GenerationResult, error)
}

type ReminderQuerier interface {
	Today() time.Time
	Get(ctx context.Context, id string) (*model.ReminderDetails, error)
	GetDue(ctx context.Context, date time.Time) ([]*model.ReminderDetails, error)
	GetToday(ctx context.Context) ([]*model.ReminderDetails, error)
	GetByRange(ctx context.Context, start, end time.Time, status *model.ReminderStatus, typ *model.TriggerType) ([]*model.ReminderSchedule, error)
	GetStatistics(ctx context.Context) (*model.Statistics, error)
}

type ReminderLifecycle interface {
	Apply(ctx context.Context, id string, status model.ReminderStatus, deliveryID, reason string) (*model.TransitionResult, error)
	Cancel(ctx context.Context, id string) (*model.TransitionResult, error)
}

type PayloadBuilder interface {
	BuildPayload(d *model.ReminderDetails) (*model.MessagePayload, error)
}

type ReminderSweeper interface {
	Sweep(ctx context.Context, retentionDays int) (*model.SweepResult, error)
}

type ReminderHandler struct {
	generator     ReminderGenerator
	query         ReminderQuerier
	lifecycle     ReminderLifecycle
	payloads      PayloadBuilder
	sweeper       ReminderSweeper
	retentionDays int
}

func NewReminderHandler(generator ReminderGenerator, query ReminderQuerier, lifecycle ReminderLifecycle, payloads PayloadBuilder, sweeper ReminderSweeper, retentionDays int) *ReminderHandler {
	return &ReminderHandler{
		generator:     generator,
		query:         query,
		lifecycle:     lifecycle,
		payloads:      payloads,
		sweeper:       sweeper,
		retentionDays: retentionDays,
	}
}

func RegisterReminderRoutes(g *router.Group, h *ReminderHandler) {
	g.POST("/reminders/generate", h.Generate)
	g.POST("/reminders/sweep", h.Sweep)
	g.GET("/reminders/today", h.Today)
	g.GET("/reminders/due", h.Due)
	g.GET("/reminders/statistics", h.Statistics)
	g.GET("/reminders", h.Range)
	g.GET("/reminders/{id}", h.Get)
	g.GET("/reminders/{id}/payload", h.Payload)
	g.PUT("/reminders/{id}", h.Update)
	g.DELETE("/reminders/{id}", h.Cancel)
}

type generateRequest struct {
	Date  string `json:"date"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
}

type updateReminderRequest struct {
	Status     model.ReminderStatus `json:"status"`
	DeliveryID string               `json:"delivery_id"`
	Reason     string               `json:"reason"`
}

type sweepRequest struct {
	RetentionDays *int `json:"retention_days"`
}

// Generate takes an optional body of {date} or {month, year}. With neither
// it targets the current month.
func (h *ReminderHandler) Generate(ctx *xhttp.RequestCtx) {
	var req generateRequest
	if err := readOptionalJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	var (
		res *model.GenerationResult
		err error
	)
	switch {
	case req.Date != "":
		date, perr := parseDate("date", req.Date)
		if perr != nil {
			writeServiceError(ctx, perr)
			return
		}
		res, err = h.generator.GenerateFor(ctx, date)
	case req.Month != 0 || req.Year != 0:
		res, err = h.generator.Generate(ctx, req.Month, req.Year)
	default:
		res, err = h.generator.GenerateFor(ctx, h.query.Today())
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, res)
}

func (h *ReminderHandler) Today(ctx *xhttp.RequestCtx) {
	items, err := h.query.GetToday(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, newList(items))
}

func (h *ReminderHandler) Due(ctx *xhttp.RequestCtx) {
	date := h.query.Today()
	if v := query(ctx, "date"); v != "" {
		d, err := parseDate("date", v)
		if err != nil {
			writeServiceError(ctx, err)
			return
		}
		date = d
	}
	items, err := h.query.GetDue(ctx, date)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, newList(items))
}

func (h *ReminderHandler) Range(ctx *xhttp.RequestCtx) {
	rawStart, rawEnd := query(ctx, "start_date"), query(ctx, "end_date")
	if rawStart == "" || rawEnd == "" {
		writeError(ctx, 400, "start_date and end_date are required")
		return
	}
	start, err := parseDate("start_date", rawStart)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	end, err := parseDate("end_date", rawEnd)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	var (
		status *model.ReminderStatus
		typ    *model.TriggerType
	)
	if v := query(ctx, "status"); v != "" {
		s := model.ReminderStatus(v)
		status = &s
	}
	if v := query(ctx, "type"); v != "" {
		t := model.TriggerType(v)
		typ = &t
	}

	items, err := h.query.GetByRange(ctx, start, end, status, typ)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, newList(items))
}

func (h *ReminderHandler) Statistics(ctx *xhttp.RequestCtx) {
	stats, err := h.query.GetStatistics(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *ReminderHandler) Get(ctx *xhttp.RequestCtx) {
	d, err := h.query.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, d)
}

func (h *ReminderHandler) Payload(ctx *xhttp.RequestCtx) {
	d, err := h.query.Get(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	p, err := h.payloads.BuildPayload(d)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, p)
}

func (h *ReminderHandler) Update(ctx *xhttp.RequestCtx) {
	var req updateReminderRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	res, err := h.lifecycle.Apply(ctx, pathParam(ctx, "id"), req.Status, req.DeliveryID, req.Reason)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, res)
}

func (h *ReminderHandler) Cancel(ctx *xhttp.RequestCtx) {
	res, err := h.lifecycle.Cancel(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, res)
}

func (h *ReminderHandler) Sweep(ctx *xhttp.RequestCtx) {
	var req sweepRequest
	if err := readOptionalJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	days := h.retentionDays
	if req.RetentionDays != nil {
		days = *req.RetentionDays
	}
	res, err := h.sweeper.Sweep(ctx, days)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, res)
}
