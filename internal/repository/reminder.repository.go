package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns allowed in CountBy. Anything else is rejected before it reaches SQL.
const (
	GroupByStatus = "status"
	GroupByType   = "reminder_type"
)

var naturalKey = []clause.Column{{Name: "lease_id"}, {Name: "trigger_name"}, {Name: "trigger_date"}}

type ReminderRepository struct {
	*pg.DB
}

func NewReminderRepository(db *pg.DB) *ReminderRepository {
	return &ReminderRepository{db}
}

func (r *ReminderRepository) Exists(ctx context.Context, leaseID, triggerName string, triggerDate time.Time) (bool, error) {
	var n int64
	err := r.Read(ctx).Model(&ReminderEntity{}).
		Where("lease_id = ? AND trigger_name = ? AND trigger_date = ?", leaseID, triggerName, model.DateOf(triggerDate)).
		Count(&n).Error
	return n > 0, err
}

// CreateIfAbsent inserts the reminder unless its natural key is taken. The
// check and the insert are one statement, so concurrent generators cannot
// both succeed. It returns model.ErrConflict when nothing was inserted.
func (r *ReminderRepository) CreateIfAbsent(ctx context.Context, m *model.ReminderSchedule) (*model.ReminderSchedule, error) {
	triggerDate, err := model.ParseDate(m.TriggerDate)
	if err != nil {
		return nil, model.NewValidationError("trigger_date", err.Error())
	}

	entity := toReminderEntity(m, triggerDate)
	res := r.Write(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: naturalKey, DoNothing: true}).
		Create(entity)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrConflict
	}
	return toReminderModel(entity), nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, id string) (*model.ReminderSchedule, error) {
	return getByID(r.Read(ctx), id)
}

func getByID(db *gorm.DB, id string) (*model.ReminderSchedule, error) {
	var e ReminderEntity
	err := db.Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toReminderModel(&e), nil
}

func (r *ReminderRepository) GetDetails(ctx context.Context, id string) (*model.ReminderDetails, error) {
	var e ReminderEntity
	err := r.withParties(r.Read(ctx)).Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toReminderDetails(&e), nil
}

// ListDue returns pending reminders firing on date with lease, tenant and
// property attached, ordered by priority then creation time.
func (r *ReminderRepository) ListDue(ctx context.Context, date time.Time) ([]*model.ReminderDetails, error) {
	var entities []*ReminderEntity
	err := r.withParties(r.Read(ctx)).
		Where("status = ? AND trigger_date = ?", string(model.ReminderStatusPending), model.DateOf(date)).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.ReminderDetails, len(entities))
	for i, e := range entities {
		out[i] = toReminderDetails(e)
	}
	return out, nil
}

// List applies f with inclusive date bounds, ordered by trigger date,
// priority and creation time.
func (r *ReminderRepository) List(ctx context.Context, f model.ReminderFilter) ([]*model.ReminderSchedule, error) {
	q := applyReminderFilter(r.Read(ctx).Model(&ReminderEntity{}), f)

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var entities []*ReminderEntity
	err := q.Order("trigger_date ASC").
		Order("priority ASC").
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toReminderModels(entities), nil
}

func (r *ReminderRepository) Count(ctx context.Context, f model.ReminderFilter) (int64, error) {
	var n int64
	err := applyReminderFilter(r.Read(ctx).Model(&ReminderEntity{}), f).Count(&n).Error
	return n, err
}

type groupRow struct {
	GroupKey string `gorm:"column:group_key"`
	Total    int64  `gorm:"column:total"`
}

// CountBy aggregates the rows matching f by one of the GroupBy* columns.
func (r *ReminderRepository) CountBy(ctx context.Context, column string, f model.ReminderFilter) ([]model.GroupCount, error) {
	if column != GroupByStatus && column != GroupByType {
		return nil, fmt.Errorf("unsupported group column %q", column)
	}

	var rows []groupRow
	err := applyReminderFilter(r.Read(ctx).Model(&ReminderEntity{}), f).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Order(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.GroupCount, len(rows))
	for i, row := range rows {
		out[i] = model.GroupCount{Key: row.GroupKey, Count: row.Total}
	}
	return out, nil
}

// Transition moves a pending reminder to a terminal status. The UPDATE is
// guarded on status = pending; when the guard misses the current row is
// loaded to tell a missing reminder from one that already left pending.
func (r *ReminderRepository) Transition(ctx context.Context, t model.ReminderTransition) (*model.ReminderSchedule, error) {
	if !t.Target.IsTerminal() {
		return nil, model.NewValidationError("status", "must be sent, failed or cancelled")
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	updates := map[string]any{
		"status":     string(t.Target),
		"updated_at": at,
	}
	switch t.Target {
	case model.ReminderStatusSent:
		updates["sent_at"] = at
		updates["delivery_id"] = optional(t.DeliveryID)
	case model.ReminderStatusFailed:
		updates["failed_reason"] = optional(t.Reason)
	}

	res := r.Write(ctx).Model(&ReminderEntity{}).
		Where("id = ? AND status = ?", t.ID, string(model.ReminderStatusPending)).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	// the replica may not have seen the update yet
	current, err := getByID(r.Write(ctx), t.ID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return current, &model.InvalidStateError{ReminderID: t.ID, Current: current.Status, Target: t.Target}
	}
	return current, nil
}

// DeleteSentBefore removes sent reminders whose trigger date is strictly
// before cutoff. Other statuses are never touched.
func (r *ReminderRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.Write(ctx).
		Where("status = ? AND trigger_date < ?", string(model.ReminderStatusSent), model.DateOf(cutoff)).
		Delete(&ReminderEntity{})
	return res.RowsAffected, res.Error
}

func (r *ReminderRepository) withParties(q *gorm.DB) *gorm.DB {
	return q.Preload("Lease").Preload("Tenant").Preload("Property")
}

func applyReminderFilter(q *gorm.DB, f model.ReminderFilter) *gorm.DB {
	if f.From != nil {
		q = q.Where("trigger_date >= ?", model.DateOf(*f.From))
	}
	if f.To != nil {
		q = q.Where("trigger_date <= ?", model.DateOf(*f.To))
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.Type != nil {
		q = q.Where("reminder_type = ?", string(*f.Type))
	}
	return q
}
