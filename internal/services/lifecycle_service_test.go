package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPending(t *testing.T, store *testStore) []*model.ReminderSchedule {
	store.seedDefaults(t)
	store.seedLease(t, nil)
	_, err := store.generator().Generate(context.Background(), 3, 2024)
	require.NoError(t, err)
	items, err := store.reminders.List(context.Background(), model.ReminderFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	return items
}

func TestLifecycleService_MarkSent(t *testing.T) {
	store := newTestStore(t)
	items := seedPending(t, store)
	svc := NewLifecycleService(store.reminders)
	at := time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)
	svc.now = fixedClock(at)
	ctx := context.Background()

	res, err := svc.MarkSent(ctx, items[0].ID, "wamid.abc")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.ReminderStatusSent, res.Reminder.Status)
	assert.Equal(t, "wamid.abc", res.Reminder.DeliveryID)
	require.NotNil(t, res.Reminder.SentAt)
	assert.True(t, at.Equal(*res.Reminder.SentAt))

	t.Run("second mark sent is a no-op", func(t *testing.T) {
		again, err := svc.MarkSent(ctx, items[0].ID, "wamid.other")
		require.NoError(t, err)
		assert.False(t, again.Applied)
		assert.Equal(t, "wamid.abc", again.Reminder.DeliveryID)
	})

	t.Run("sent cannot fail or be cancelled", func(t *testing.T) {
		failed, err := svc.MarkFailed(ctx, items[0].ID, "timeout")
		require.NoError(t, err)
		assert.False(t, failed.Applied)
		assert.Equal(t, model.ReminderStatusSent, failed.Reminder.Status)

		cancelled, err := svc.Cancel(ctx, items[0].ID)
		require.NoError(t, err)
		assert.False(t, cancelled.Applied)
		assert.Equal(t, model.ReminderStatusSent, cancelled.Reminder.Status)
	})
}

func TestLifecycleService_FailAndCancel(t *testing.T) {
	store := newTestStore(t)
	items := seedPending(t, store)
	svc := NewLifecycleService(store.reminders)
	ctx := context.Background()

	res, err := svc.MarkFailed(ctx, items[1].ID, "number not reachable")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.ReminderStatusFailed, res.Reminder.Status)
	assert.Equal(t, "number not reachable", res.Reminder.FailedReason)

	res, err = svc.Cancel(ctx, items[2].ID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.ReminderStatusCancelled, res.Reminder.Status)

	res, err = svc.MarkSent(ctx, items[2].ID, "")
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, model.ReminderStatusCancelled, res.Reminder.Status)
}

func TestLifecycleService_Errors(t *testing.T) {
	store := newTestStore(t)
	items := seedPending(t, store)
	svc := NewLifecycleService(store.reminders)
	ctx := context.Background()

	_, err := svc.MarkSent(ctx, "does-not-exist", "x")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.MarkFailed(ctx, items[0].ID, "")
	assert.True(t, model.IsValidationError(err))

	_, err = svc.Apply(ctx, items[0].ID, model.ReminderStatusPending, "", "")
	assert.True(t, model.IsValidationError(err))

	res, err := svc.Apply(ctx, items[0].ID, model.ReminderStatusFailed, "", "bounced")
	require.NoError(t, err)
	assert.True(t, res.Applied)

	got, err := svc.Get(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
}
