package model

import (
	"strings"
	"time"
)

type TriggerType string

const (
	TriggerTypeRentDue      TriggerType = "rent_due"
	TriggerTypeLeaseRenewal TriggerType = "lease_renewal"
	TriggerTypeMaintenance  TriggerType = "maintenance"
	TriggerTypeInspection   TriggerType = "inspection"
)

var TriggerTypes = []TriggerType{
	TriggerTypeRentDue,
	TriggerTypeLeaseRenewal,
	TriggerTypeMaintenance,
	TriggerTypeInspection,
}

func (t TriggerType) Valid() bool {
	for _, v := range TriggerTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Trigger maps a reminder type and a day offset to a message template.
// Negative offsets fire before the anchor date, positive ones after it.
type Trigger struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Type            TriggerType `json:"type"`
	DayOffset       int         `json:"day_offset"`
	IsActive        bool        `json:"is_active"`
	MessageTemplate string      `json:"message_template"`
	Priority        int         `json:"priority"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TriggerUpsertRequest is the input for creating or replacing a trigger by name.
type TriggerUpsertRequest struct {
	Name            string      `json:"name"`
	Type            TriggerType `json:"type"`
	DayOffset       *int        `json:"day_offset"`
	IsActive        *bool       `json:"is_active"`
	MessageTemplate string      `json:"message_template"`
	Priority        *int        `json:"priority"`
}

func (p TriggerUpsertRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if !p.Type.Valid() {
		return NewValidationError("type", "must be one of rent_due, lease_renewal, maintenance, inspection")
	}
	if p.DayOffset == nil {
		return NewValidationError("day_offset", "must be an integer")
	}
	if strings.TrimSpace(p.MessageTemplate) == "" {
		return NewValidationError("message_template", "is required")
	}
	return nil
}

func (p TriggerUpsertRequest) ToTrigger() *Trigger {
	t := &Trigger{
		Name:            strings.TrimSpace(p.Name),
		Type:            p.Type,
		IsActive:        true,
		MessageTemplate: p.MessageTemplate,
		Priority:        1,
	}
	if p.DayOffset != nil {
		t.DayOffset = *p.DayOffset
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	return t
}

type TriggerFilter struct {
	ActiveOnly bool
}

// DefaultTriggers is the seed set installed by `cli seed`.
func DefaultTriggers() []TriggerUpsertRequest {
	return []TriggerUpsertRequest{
		defaultTrigger("rent_due_3_days_before", TriggerTypeRentDue, -3, 1,
			"Hi {{tenant_name}}, a friendly reminder that your rent of {{rent_amount}} for {{property_name}} is due on {{due_date}}."),
		defaultTrigger("rent_due_on_due_date", TriggerTypeRentDue, 0, 2,
			"Hi {{tenant_name}}, your rent of {{rent_amount}} for {{property_name}} is due today, {{due_date}}."),
		defaultTrigger("rent_due_2_days_overdue", TriggerTypeRentDue, 2, 3,
			"Hi {{tenant_name}}, your rent of {{rent_amount}} for {{property_name}} was due on {{due_date}} and is now overdue. Please pay as soon as possible."),
		defaultTrigger("lease_renewal_30_days_before", TriggerTypeLeaseRenewal, -30, 4,
			"Hi {{tenant_name}}, your lease at {{property_name}} ends on {{lease_end_date}}. Please get in touch to discuss renewal."),
	}
}

func defaultTrigger(name string, typ TriggerType, offset, priority int, template string) TriggerUpsertRequest {
	active := true
	return TriggerUpsertRequest{
		Name:            name,
		Type:            typ,
		DayOffset:       &offset,
		IsActive:        &active,
		MessageTemplate: template,
		Priority:        &priority,
	}
}
