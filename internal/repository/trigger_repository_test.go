package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTriggerRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, &model.Trigger{
		Name:            "rent_due_on_due_date",
		Type:            model.TriggerTypeRentDue,
		DayOffset:       0,
		IsActive:        true,
		MessageTemplate: "Rent due {{due_date}}",
		Priority:        2,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	t.Run("same name replaces the row", func(t *testing.T) {
		updated, err := repo.Upsert(ctx, &model.Trigger{
			Name:            "rent_due_on_due_date",
			Type:            model.TriggerTypeRentDue,
			DayOffset:       1,
			IsActive:        false,
			MessageTemplate: "Rent was due {{due_date}}",
			Priority:        5,
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, 1, updated.DayOffset)
		assert.False(t, updated.IsActive)
		assert.Equal(t, "Rent was due {{due_date}}", updated.MessageTemplate)
		assert.Equal(t, 5, updated.Priority)

		all, err := repo.List(ctx, model.TriggerFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("get by name", func(t *testing.T) {
		got, err := repo.GetByName(ctx, "rent_due_on_due_date")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		_, err = repo.GetByName(ctx, "nope")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestTriggerRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTriggerRepository(db.DB)
	ctx := context.Background()

	for _, req := range model.DefaultTriggers() {
		_, err := repo.Upsert(ctx, req.ToTrigger())
		require.NoError(t, err)
	}
	_, err := repo.Upsert(ctx, &model.Trigger{
		Name:            "inspection_7_days_before",
		Type:            model.TriggerTypeInspection,
		DayOffset:       -7,
		IsActive:        false,
		MessageTemplate: "Inspection at {{property_name}}",
		Priority:        1,
	})
	require.NoError(t, err)

	t.Run("all triggers by priority then name", func(t *testing.T) {
		all, err := repo.List(ctx, model.TriggerFilter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "inspection_7_days_before", all[0].Name)
		assert.Equal(t, "rent_due_3_days_before", all[1].Name)
		assert.Equal(t, "lease_renewal_30_days_before", all[4].Name)
	})

	t.Run("active only", func(t *testing.T) {
		active, err := repo.List(ctx, model.TriggerFilter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 4)
		for _, tr := range active {
			assert.True(t, tr.IsActive)
		}
	})
}
