package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/shopspring/decimal"
)

// DisplayDateLayout is how dates appear inside rendered messages.
const DisplayDateLayout = "2 January 2006"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Rendered is the output of rendering one trigger for one lease.
type Rendered struct {
	Message   string
	Variables map[string]string
	Metadata  map[string]any
}

// Materializer turns templates and lease context into messages and
// transport payloads. It holds no state.
type Materializer struct{}

func NewMaterializer() *Materializer {
	return &Materializer{}
}

// Render fills t's template for the lease in lc. anchor is the date the
// trigger offset was measured from and triggerDate the day it fires.
func (m *Materializer) Render(t *model.Trigger, lc *model.LeaseContext, anchor, triggerDate time.Time) (*Rendered, error) {
	vars, err := m.Variables(t, lc, anchor, triggerDate)
	if err != nil {
		return nil, err
	}
	msg, err := m.Substitute(t.MessageTemplate, vars)
	if err != nil {
		return nil, err
	}

	l := lc.Lease
	meta := map[string]any{
		"tenant_name":    vars["tenant_name"],
		"tenant_phone":   vars["tenant_phone"],
		"property_name":  vars["property_name"],
		"rent_amount":    l.RentAmount.StringFixed(2),
		"rent_currency":  vars["rent_currency"],
		"due_date":       vars["due_date"],
		"anchor_date":    model.FormatDate(anchor),
		"lease_end_date": model.FormatDate(l.EndDate),
		"days_offset":    t.DayOffset,
	}
	return &Rendered{Message: msg, Variables: vars, Metadata: meta}, nil
}

// Variables collects every value a template may reference.
func (m *Materializer) Variables(t *model.Trigger, lc *model.LeaseContext, anchor, triggerDate time.Time) (map[string]string, error) {
	if lc == nil || lc.Lease == nil {
		return nil, &model.RenderError{Reason: "lease is missing"}
	}
	if lc.Tenant == nil {
		return nil, &model.RenderError{Placeholder: "tenant_name", Reason: "lease has no tenant"}
	}
	if lc.Property == nil {
		return nil, &model.RenderError{Placeholder: "property_name", Reason: "lease has no property"}
	}

	l := lc.Lease
	due := anchor
	if t.Type != model.TriggerTypeRentDue {
		due = clampDay(triggerDate.Year(), triggerDate.Month(), l.DueDay)
	}

	return map[string]string{
		"tenant_name":      strings.TrimSpace(lc.Tenant.Name),
		"tenant_phone":     strings.TrimSpace(lc.Tenant.Phone),
		"tenant_email":     strings.TrimSpace(lc.Tenant.Email),
		"property_name":    strings.TrimSpace(lc.Property.Name),
		"property_address": strings.TrimSpace(lc.Property.Address),
		"rent_amount":      FormatMoney(l.RentAmount, l.RentCurrency),
		"rent_currency":    l.RentCurrency,
		"due_date":         due.Format(DisplayDateLayout),
		"trigger_date":     triggerDate.Format(DisplayDateLayout),
		"lease_end_date":   l.EndDate.Format(DisplayDateLayout),
		"days_offset":      strconv.Itoa(t.DayOffset),
	}, nil
}

// Substitute replaces every {{name}} in template with vars[name]. A name
// that is unknown or maps to an empty value is a RenderError.
func (m *Materializer) Substitute(template string, vars map[string]string) (string, error) {
	var renderErr error
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if renderErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok {
			renderErr = &model.RenderError{Placeholder: name, Reason: "unknown placeholder"}
			return match
		}
		if v == "" {
			renderErr = &model.RenderError{Placeholder: name, Reason: "no value in context"}
			return match
		}
		return v
	})
	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}

// BuildPayload turns a stored reminder into what the messaging collaborator
// receives. Template variables fall back to the metadata snapshot.
func (m *Materializer) BuildPayload(d *model.ReminderDetails) (*model.MessagePayload, error) {
	if d == nil || d.ReminderSchedule == nil {
		return nil, &model.RenderError{Reason: "reminder is missing"}
	}
	if strings.TrimSpace(d.PersonalizedMessage) == "" {
		return nil, &model.RenderError{Reason: "reminder has no personalized message"}
	}

	vars := d.TemplateVariables
	if len(vars) == 0 {
		vars = stringifyMetadata(d.Metadata)
	}

	to := ""
	if d.Tenant != nil {
		to = strings.TrimSpace(d.Tenant.Phone)
	}
	if to == "" {
		to = vars["tenant_phone"]
	}
	if to == "" {
		return nil, &model.RenderError{Placeholder: "tenant_phone", Reason: "no recipient"}
	}

	return &model.MessagePayload{
		To:                to,
		Message:           d.PersonalizedMessage,
		TemplateVariables: vars,
		Metadata: model.PayloadMetadata{
			ReminderID:   d.ID,
			ReminderType: d.ReminderType,
			TriggerDate:  d.TriggerDate,
			LeaseID:      d.LeaseID,
			TenantID:     d.TenantID,
		},
	}, nil
}

// BulkBuildPayloads builds payloads for items, skipping the ones that cannot
// be built.
func (m *Materializer) BulkBuildPayloads(items []*model.ReminderDetails) []*model.MessagePayload {
	out := make([]*model.MessagePayload, 0, len(items))
	for _, d := range items {
		p, err := m.BuildPayload(d)
		if err != nil {
			id := ""
			if d != nil && d.ReminderSchedule != nil {
				id = d.ID
			}
			logger.Warn("skipping reminder payload", "reminder_id", id, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// FormatMoney renders amount as "KES 50,000.00".
func FormatMoney(amount decimal.Decimal, currency string) string {
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	if currency == "" {
		return sign + b.String() + "." + frac
	}
	return currency + " " + sign + b.String() + "." + frac
}

func stringifyMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
