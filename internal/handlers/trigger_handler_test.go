package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTriggerService struct {
	mock.Mock
}

func (m *MockTriggerService) List(ctx context.Context, activeOnly bool) ([]*model.Trigger, error) {
	args := m.Called(ctx, activeOnly)
	if r := args.Get(0); r != nil {
		return r.([]*model.Trigger), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockTriggerService) Upsert(ctx context.Context, p model.TriggerUpsertRequest) (*model.Trigger, error) {
	args := m.Called(ctx, p)
	if r := args.Get(0); r != nil {
		return r.(*model.Trigger), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestTriggerHandler_List(t *testing.T) {
	triggers := []*model.Trigger{
		{Name: "rent_due_3_days", Type: model.TriggerTypeRentDue, DayOffset: -3, IsActive: true},
	}

	tests := []struct {
		name       string
		uri        string
		activeOnly bool
	}{
		{"all", "/api/v1/triggers", false},
		{"active only", "/api/v1/triggers?active=true", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTriggerService)
			svc.On("List", mock.Anything, tt.activeOnly).Return(triggers, nil).Once()

			ctx := setupTestContext("GET", tt.uri, nil)
			NewTriggerHandler(svc).List(ctx)

			assert.Equal(t, 200, ctx.Response.StatusCode())
			assert.Contains(t, string(ctx.Response.Body()), `"count":1`)
			svc.AssertExpectations(t)
		})
	}

	t.Run("bad flag", func(t *testing.T) {
		svc := new(MockTriggerService)
		ctx := setupTestContext("GET", "/api/v1/triggers?active=maybe", nil)
		NewTriggerHandler(svc).List(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestTriggerHandler_Upsert(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockTriggerService)
		svc.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.TriggerUpsertRequest) bool {
			return p.Name == "rent_due_7_days" && p.Type == model.TriggerTypeRentDue && p.DayOffset != nil && *p.DayOffset == -7
		})).Return(&model.Trigger{ID: "t-1", Name: "rent_due_7_days", Type: model.TriggerTypeRentDue, DayOffset: -7}, nil).Once()

		body := []byte(`{"name":"rent_due_7_days","type":"rent_due","day_offset":-7,"message_template":"Hi {{tenant_name}}"}`)
		ctx := setupTestContext("POST", "/api/v1/triggers", body)
		NewTriggerHandler(svc).Upsert(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
		var got model.Trigger
		decodeBody(t, ctx, &got)
		assert.Equal(t, "t-1", got.ID)
		svc.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		svc := new(MockTriggerService)
		svc.On("Upsert", mock.Anything, mock.Anything).Return(nil, model.NewValidationError("type", "must be one of rent_due, lease_renewal, maintenance, inspection")).Once()

		ctx := setupTestContext("POST", "/api/v1/triggers", []byte(`{"name":"x","type":"sms"}`))
		NewTriggerHandler(svc).Upsert(ctx)
		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Contains(t, errorBody(t, ctx), "type")
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := new(MockTriggerService)
		svc.On("Upsert", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset")).Once()

		ctx := setupTestContext("POST", "/api/v1/triggers", []byte(`{"name":"x","type":"rent_due"}`))
		NewTriggerHandler(svc).Upsert(ctx)
		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}

func TestTriggerHandler_UpdateUsesPathName(t *testing.T) {
	svc := new(MockTriggerService)
	svc.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.TriggerUpsertRequest) bool {
		return p.Name == "rent_due_3_days" && p.IsActive != nil && !*p.IsActive
	})).Return(&model.Trigger{Name: "rent_due_3_days", IsActive: false}, nil).Once()

	body := []byte(`{"name":"ignored","type":"rent_due","day_offset":-3,"is_active":false,"message_template":"x"}`)
	ctx := setupTestContext("PUT", "/api/v1/triggers/rent_due_3_days", body)
	ctx.SetUserValue("name", "rent_due_3_days")
	NewTriggerHandler(svc).Update(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}
