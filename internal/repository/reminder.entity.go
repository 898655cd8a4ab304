package repository

import (
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"gorm.io/datatypes"
)

// ReminderEntity is one row of reminder_schedules. The natural key
// (lease_id, trigger_name, trigger_date) is unique.
type ReminderEntity struct {
	pg.Model
	LeaseID             string                                  `gorm:"column:lease_id;type:uuid;not null;uniqueIndex:ux_reminder_natural_key,priority:1"`
	TriggerName         string                                  `gorm:"column:trigger_name;not null;uniqueIndex:ux_reminder_natural_key,priority:2"`
	TriggerDate         time.Time                               `gorm:"column:trigger_date;type:date;not null;uniqueIndex:ux_reminder_natural_key,priority:3;index:idx_reminder_status_date,priority:2"`
	TenantID            string                                  `gorm:"column:tenant_id;type:uuid;not null;index"`
	PropertyID          string                                  `gorm:"column:property_id;type:uuid;not null"`
	ReminderType        string                                  `gorm:"column:reminder_type;not null;index"`
	Status              string                                  `gorm:"column:status;not null;index:idx_reminder_status_date,priority:1"`
	Priority            int                                     `gorm:"column:priority;not null"`
	MessageTemplate     string                                  `gorm:"column:message_template;type:text"`
	PersonalizedMessage string                                  `gorm:"column:personalized_message;type:text"`
	TriggerConfig       datatypes.JSONType[model.TriggerConfig] `gorm:"column:trigger_config"`
	TemplateVariables   datatypes.JSONType[map[string]string]   `gorm:"column:template_variables"`
	Metadata            datatypes.JSONMap                       `gorm:"column:metadata"`
	SentAt              *time.Time                              `gorm:"column:sent_at"`
	FailedReason        *string                                 `gorm:"column:failed_reason"`
	DeliveryID          *string                                 `gorm:"column:delivery_id"`
	Lease               *LeaseEntity                            `gorm:"foreignKey:LeaseID;references:ID"`
	Tenant              *TenantEntity                           `gorm:"foreignKey:TenantID;references:ID"`
	Property            *PropertyEntity                         `gorm:"foreignKey:PropertyID;references:ID"`
}

func (ReminderEntity) TableName() string {
	return "reminder_schedules"
}

func toReminderEntity(m *model.ReminderSchedule, triggerDate time.Time) *ReminderEntity {
	if m == nil {
		return nil
	}
	e := &ReminderEntity{
		LeaseID:             m.LeaseID,
		TriggerName:         m.TriggerName,
		TriggerDate:         model.DateOf(triggerDate),
		TenantID:            m.TenantID,
		PropertyID:          m.PropertyID,
		ReminderType:        string(m.ReminderType),
		Status:              string(m.Status),
		Priority:            m.Priority,
		MessageTemplate:     m.MessageTemplate,
		PersonalizedMessage: m.PersonalizedMessage,
		TriggerConfig:       datatypes.NewJSONType(m.TriggerConfig),
		TemplateVariables:   datatypes.NewJSONType(m.TemplateVariables),
		Metadata:            datatypes.JSONMap(m.Metadata),
		SentAt:              m.SentAt,
		FailedReason:        optional(m.FailedReason),
		DeliveryID:          optional(m.DeliveryID),
	}
	e.ID = m.ID
	return e
}

func toReminderModel(e *ReminderEntity) *model.ReminderSchedule {
	if e == nil {
		return nil
	}
	return &model.ReminderSchedule{
		ID:                  e.ID,
		LeaseID:             e.LeaseID,
		TenantID:            e.TenantID,
		PropertyID:          e.PropertyID,
		TriggerName:         e.TriggerName,
		ReminderType:        model.TriggerType(e.ReminderType),
		TriggerDate:         model.FormatDate(e.TriggerDate),
		Status:              model.ReminderStatus(e.Status),
		Priority:            e.Priority,
		MessageTemplate:     e.MessageTemplate,
		PersonalizedMessage: e.PersonalizedMessage,
		TriggerConfig:       e.TriggerConfig.Data(),
		TemplateVariables:   e.TemplateVariables.Data(),
		Metadata:            map[string]any(e.Metadata),
		SentAt:              e.SentAt,
		FailedReason:        deref(e.FailedReason),
		DeliveryID:          deref(e.DeliveryID),
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toReminderModels(entities []*ReminderEntity) []*model.ReminderSchedule {
	out := make([]*model.ReminderSchedule, len(entities))
	for i, e := range entities {
		out[i] = toReminderModel(e)
	}
	return out
}

func toReminderDetails(e *ReminderEntity) *model.ReminderDetails {
	d := &model.ReminderDetails{
		ReminderSchedule: toReminderModel(e),
		Tenant:           toTenantModel(e.Tenant),
		Property:         toPropertyModel(e.Property),
	}
	if e.Lease != nil {
		d.Lease = toLeaseModel(e.Lease)
	}
	return d
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
