package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TriggerRepository struct {
	*pg.DB
}

func NewTriggerRepository(db *pg.DB) *TriggerRepository {
	return &TriggerRepository{db}
}

// List returns triggers ordered by priority, then name.
func (r *TriggerRepository) List(ctx context.Context, f model.TriggerFilter) ([]*model.Trigger, error) {
	q := r.Read(ctx).Model(&TriggerEntity{})
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var entities []*TriggerEntity
	if err := q.Order("priority ASC").Order("trigger_name ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTriggerModels(entities), nil
}

func (r *TriggerRepository) GetByName(ctx context.Context, name string) (*model.Trigger, error) {
	var e TriggerEntity
	err := r.Read(ctx).Where("trigger_name = ?", name).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTriggerModel(&e), nil
}

// Upsert inserts the trigger or replaces every mutable column of the row
// with the same name.
func (r *TriggerRepository) Upsert(ctx context.Context, t *model.Trigger) (*model.Trigger, error) {
	entity := toTriggerEntity(t)
	entity.ID = ""

	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "trigger_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"trigger_type", "days_offset", "is_active", "message_template", "priority", "updated_at",
		}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}

	var stored TriggerEntity
	if err := r.Write(ctx).Where("trigger_name = ?", entity.Name).First(&stored).Error; err != nil {
		return nil, err
	}
	return toTriggerModel(&stored), nil
}
