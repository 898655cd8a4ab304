package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

// readOptionalJSON leaves dst untouched when the body is empty.
func readOptionalJSON(ctx *xhttp.RequestCtx, dst any) error {
	if len(strings.TrimSpace(string(ctx.PostBody()))) == 0 {
		return nil
	}
	return readJSON(ctx, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("response encoding failed", "path", string(ctx.Path()), "error", err)
		status, b = 500, []byte(`{"error":"internal error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto status codes. Anything unknown
// is logged and reported as a 500 without leaking the cause.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case model.IsValidationError(err), model.IsRenderError(err):
		writeError(ctx, 400, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, model.ErrConflict):
		writeError(ctx, 409, err.Error())
	default:
		logger.Error("request failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "error", err)
		writeError(ctx, 500, "internal error")
	}
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek(key)))
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

// parseDate accepts YYYY-MM-DD or RFC3339; the time part is dropped.
func parseDate(field, s string) (time.Time, error) {
	if t, err := model.ParseDate(s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return model.DateOf(t), nil
	}
	return time.Time{}, model.NewValidationError(field, "must be a date in YYYY-MM-DD format")
}
