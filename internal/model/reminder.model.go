package model

import (
	"time"
)

// ReminderStatus is the lifecycle state of a reminder. Only pending has
// outgoing transitions; sent, failed and cancelled are terminal.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderStatusPending, ReminderStatusSent, ReminderStatusFailed, ReminderStatusCancelled:
		return true
	}
	return false
}

func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderStatusSent || s == ReminderStatusFailed || s == ReminderStatusCancelled
}

func (s ReminderStatus) CanTransitionTo(next ReminderStatus) bool {
	return s == ReminderStatusPending && next.IsTerminal()
}

// TriggerConfig is the trigger as it was when the reminder was generated.
type TriggerConfig struct {
	Name      string      `json:"name"`
	Type      TriggerType `json:"type"`
	DayOffset int         `json:"day_offset"`
	Priority  int         `json:"priority"`
}

func TriggerConfigOf(t *Trigger) TriggerConfig {
	return TriggerConfig{
		Name:      t.Name,
		Type:      t.Type,
		DayOffset: t.DayOffset,
		Priority:  t.Priority,
	}
}

// ReminderSchedule is one dated instance of a trigger for a lease. Tenant and
// property references and the metadata are a snapshot taken at generation
// time and are never refreshed.
type ReminderSchedule struct {
	ID                  string            `json:"id"`
	LeaseID             string            `json:"lease_id"`
	TenantID            string            `json:"tenant_id"`
	PropertyID          string            `json:"property_id"`
	TriggerName         string            `json:"trigger_name"`
	ReminderType        TriggerType       `json:"reminder_type"`
	TriggerDate         string            `json:"trigger_date"`
	Status              ReminderStatus    `json:"status"`
	Priority            int               `json:"priority"`
	MessageTemplate     string            `json:"message_template"`
	PersonalizedMessage string            `json:"personalized_message"`
	TriggerConfig       TriggerConfig     `json:"trigger_config"`
	TemplateVariables   map[string]string `json:"template_variables,omitempty"`
	Metadata            map[string]any    `json:"metadata,omitempty"`
	SentAt              *time.Time        `json:"sent_at,omitempty"`
	FailedReason        string            `json:"failed_reason,omitempty"`
	DeliveryID          string            `json:"delivery_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ReminderDetails is a reminder joined with the live lease, tenant and
// property rows.
type ReminderDetails struct {
	*ReminderSchedule
	Lease    *Lease    `json:"lease,omitempty"`
	Tenant   *Tenant   `json:"tenant,omitempty"`
	Property *Property `json:"property,omitempty"`
}

// ReminderFilter drives range and due queries. Date bounds are inclusive.
type ReminderFilter struct {
	From   *time.Time
	To     *time.Time
	Status *ReminderStatus
	Type   *TriggerType
	Limit  int
}

// ReminderTransition describes a status change requested by a caller.
type ReminderTransition struct {
	ID         string
	Target     ReminderStatus
	DeliveryID string
	Reason     string
	At         time.Time
}

type TransitionResult struct {
	Reminder *ReminderSchedule `json:"reminder"`
	Applied  bool              `json:"applied"`
}

type GenerationFailure struct {
	LeaseID     string `json:"lease_id"`
	TriggerName string `json:"trigger_name"`
	Reason      string `json:"reason"`
}

type GenerationResult struct {
	Generated int                 `json:"generated"`
	Skipped   int                 `json:"skipped"`
	Errors    int                 `json:"errors"`
	Month     int                 `json:"month"`
	Year      int                 `json:"year"`
	Failures  []GenerationFailure `json:"failures,omitempty"`
}

type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type Statistics struct {
	Total    int64        `json:"total"`
	ByStatus []GroupCount `json:"by_status"`
	Today    []GroupCount `json:"today"`
	ByType   []GroupCount `json:"by_type"`
}

type SweepResult struct {
	DeletedCount  int64  `json:"deleted_count"`
	RetentionDays int    `json:"retention_days"`
	Cutoff        string `json:"cutoff"`
}

type CronResult struct {
	Generated       *GenerationResult `json:"generated"`
	TodaysReminders int               `json:"todays_reminders"`
	Messages        int               `json:"messages"`
	Published       int               `json:"published"`
	// AlreadyQueued counts due reminders published by an earlier run today.
	AlreadyQueued int `json:"already_queued"`
}
