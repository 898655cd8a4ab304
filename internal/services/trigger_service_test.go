package services

import (
	"context"
	"testing"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTriggerRepository struct {
	mock.Mock
}

func (m *MockTriggerRepository) List(ctx context.Context, f model.TriggerFilter) ([]*model.Trigger, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) Upsert(ctx context.Context, t *model.Trigger) (*model.Trigger, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestTriggerService_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		repo := new(MockTriggerRepository)
		svc := NewTriggerService(repo)
		repo.On("Upsert", ctx, mock.MatchedBy(func(tr *model.Trigger) bool {
			return tr.Name == "inspection" && tr.IsActive && tr.Priority == 1 && tr.DayOffset == -7
		})).Return(&model.Trigger{ID: "t-1", Name: "inspection"}, nil)

		got, err := svc.Upsert(ctx, model.TriggerUpsertRequest{
			Name:            " inspection ",
			Type:            model.TriggerTypeInspection,
			DayOffset:       intPtr(-7),
			MessageTemplate: "Inspection at {{property_name}}",
		})
		require.NoError(t, err)
		assert.Equal(t, "t-1", got.ID)
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name string
		req  model.TriggerUpsertRequest
	}{
		{"empty name", model.TriggerUpsertRequest{Type: model.TriggerTypeRentDue, DayOffset: intPtr(0), MessageTemplate: "x"}},
		{"unknown type", model.TriggerUpsertRequest{Name: "a", Type: "payday", DayOffset: intPtr(0), MessageTemplate: "x"}},
		{"missing offset", model.TriggerUpsertRequest{Name: "a", Type: model.TriggerTypeRentDue, MessageTemplate: "x"}},
		{"blank template", model.TriggerUpsertRequest{Name: "a", Type: model.TriggerTypeRentDue, DayOffset: intPtr(0), MessageTemplate: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockTriggerRepository)
			_, err := NewTriggerService(repo).Upsert(ctx, tt.req)
			assert.True(t, model.IsValidationError(err))
			repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		})
	}
}

func TestTriggerService_SeedDefaults(t *testing.T) {
	store := newTestStore(t)
	svc := NewTriggerService(store.triggers)
	ctx := context.Background()

	seeded, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Len(t, seeded, 4)

	_, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 4)
	assert.Equal(t, "rent_due_3_days_before", active[0].Name)
	assert.Equal(t, -3, active[0].DayOffset)
	assert.Equal(t, "lease_renewal_30_days_before", active[3].Name)
}
