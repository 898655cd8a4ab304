package repository

import (
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
)

type TriggerEntity struct {
	pg.Model
	Name            string `gorm:"column:trigger_name;not null;uniqueIndex:ux_reminder_trigger_name"`
	Type            string `gorm:"column:trigger_type;not null"`
	DayOffset       int    `gorm:"column:days_offset;not null"`
	IsActive        bool   `gorm:"column:is_active;not null"`
	MessageTemplate string `gorm:"column:message_template;type:text;not null"`
	Priority        int    `gorm:"column:priority;not null"`
}

func (TriggerEntity) TableName() string {
	return "reminder_triggers"
}

func toTriggerEntity(t *model.Trigger) *TriggerEntity {
	if t == nil {
		return nil
	}
	e := &TriggerEntity{
		Name:            t.Name,
		Type:            string(t.Type),
		DayOffset:       t.DayOffset,
		IsActive:        t.IsActive,
		MessageTemplate: t.MessageTemplate,
		Priority:        t.Priority,
	}
	e.ID = t.ID
	return e
}

func toTriggerModel(e *TriggerEntity) *model.Trigger {
	if e == nil {
		return nil
	}
	return &model.Trigger{
		ID:              e.ID,
		Name:            e.Name,
		Type:            model.TriggerType(e.Type),
		DayOffset:       e.DayOffset,
		IsActive:        e.IsActive,
		MessageTemplate: e.MessageTemplate,
		Priority:        e.Priority,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toTriggerModels(entities []*TriggerEntity) []*model.Trigger {
	out := make([]*model.Trigger, len(entities))
	for i, e := range entities {
		out[i] = toTriggerModel(e)
	}
	return out
}
