package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryService(t *testing.T) {
	store := newTestStore(t)
	items := seedPending(t, store)
	ctx := context.Background()

	lifecycle := NewLifecycleService(store.reminders)
	byName := map[string]*model.ReminderSchedule{}
	for _, r := range items {
		byName[r.TriggerName] = r
	}
	_, err := lifecycle.MarkSent(ctx, byName["rent_due_3_days_before"].ID, "d-1")
	require.NoError(t, err)

	nairobi := time.FixedZone("EAT", 3*60*60)
	svc := NewQueryService(store.reminders, nairobi)
	// 22:30 UTC on the 4th is already the 5th in Nairobi.
	svc.now = fixedClock(time.Date(2024, time.March, 4, 22, 30, 0, 0, time.UTC))

	t.Run("today uses the configured timezone", func(t *testing.T) {
		assert.Equal(t, model.NewDate(2024, time.March, 5), svc.Today())

		today, err := svc.GetToday(ctx)
		require.NoError(t, err)
		require.Len(t, today, 1)
		assert.Equal(t, "rent_due_on_due_date", today[0].TriggerName)
		require.NotNil(t, today[0].Tenant)
		assert.Equal(t, "+254700000001", today[0].Tenant.Phone)
	})

	t.Run("due excludes sent reminders", func(t *testing.T) {
		due, err := svc.GetDue(ctx, model.NewDate(2024, time.March, 2))
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("range is inclusive", func(t *testing.T) {
		got, err := svc.GetByRange(ctx, model.NewDate(2024, time.March, 2), model.NewDate(2024, time.March, 7), nil, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2024-03-02", got[0].TriggerDate)
		assert.Equal(t, "2024-03-07", got[2].TriggerDate)

		pending := model.ReminderStatusPending
		got, err = svc.GetByRange(ctx, model.NewDate(2024, time.March, 1), model.NewDate(2024, time.March, 31), &pending, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("range validation", func(t *testing.T) {
		_, err := svc.GetByRange(ctx, model.NewDate(2024, time.March, 7), model.NewDate(2024, time.March, 2), nil, nil)
		assert.True(t, model.IsValidationError(err))

		bogus := model.ReminderStatus("delivered")
		_, err = svc.GetByRange(ctx, model.NewDate(2024, time.March, 1), model.NewDate(2024, time.March, 2), &bogus, nil)
		assert.True(t, model.IsValidationError(err))
	})

	t.Run("statistics", func(t *testing.T) {
		stats, err := svc.GetStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, []model.GroupCount{{Key: "pending", Count: 2}, {Key: "sent", Count: 1}}, stats.ByStatus)
		assert.Equal(t, []model.GroupCount{{Key: "pending", Count: 1}}, stats.Today)
		assert.Equal(t, []model.GroupCount{{Key: "rent_due", Count: 3}}, stats.ByType)
	})

	t.Run("get details", func(t *testing.T) {
		d, err := svc.Get(ctx, byName["rent_due_on_due_date"].ID)
		require.NoError(t, err)
		require.NotNil(t, d.Lease)
		assert.Equal(t, 5, d.Lease.DueDay)

		_, err = svc.Get(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestQueryService_EmptyStatistics(t *testing.T) {
	store := newTestStore(t)
	svc := NewQueryService(store.reminders, nil)

	stats, err := svc.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.NotNil(t, stats.ByStatus)
	assert.NotNil(t, stats.Today)
	assert.NotNil(t, stats.ByType)
}
