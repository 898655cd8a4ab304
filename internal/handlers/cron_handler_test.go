package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCronRunner struct {
	mock.Mock
}

func (m *MockCronRunner) Run(ctx context.Context) (*model.CronResult, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*model.CronResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubHealth struct{ err error }

func (s stubHealth) Check(ctx context.Context) error { return s.err }

func TestCronHandler_Run(t *testing.T) {
	result := &model.CronResult{
		Generated:       &model.GenerationResult{Generated: 3, Month: 3, Year: 2024},
		TodaysReminders: 1,
		Messages:        1,
	}

	tests := []struct {
		name   string
		secret string
		header string
		status int
		runs   bool
	}{
		{"valid secret", "s3cret", "Bearer s3cret", 200, true},
		{"wrong secret", "s3cret", "Bearer nope", 401, false},
		{"missing header", "s3cret", "", 401, false},
		{"no scheme", "s3cret", "s3cret", 401, false},
		{"unset secret refuses everything", "", "Bearer ", 401, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockCronRunner)
			if tt.runs {
				runner.On("Run", mock.Anything).Return(result, nil).Once()
			}

			ctx := setupTestContext("POST", "/api/v1/cron/reminders", nil)
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			NewCronHandler(runner, tt.secret).Run(ctx)

			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			if tt.runs {
				var got model.CronResult
				decodeBody(t, ctx, &got)
				assert.Equal(t, 3, got.Generated.Generated)
				assert.Equal(t, 1, got.TodaysReminders)
			} else {
				runner.AssertNotCalled(t, "Run", mock.Anything)
			}
		})
	}

	t.Run("failure", func(t *testing.T) {
		runner := new(MockCronRunner)
		runner.On("Run", mock.Anything).Return(nil, errors.New("db down")).Once()

		ctx := setupTestContext("POST", "/api/v1/cron/reminders", nil)
		ctx.Request.Header.Set("Authorization", "Bearer s3cret")
		NewCronHandler(runner, "s3cret").Run(ctx)
		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}

func TestHealthHandler(t *testing.T) {
	ctx := setupTestContext("GET", "/api/v1/health", nil)
	NewHealthHandler(stubHealth{}).GetHealth(ctx)
	assert.Equal(t, 200, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"healthy"}`, string(ctx.Response.Body()))

	ctx = setupTestContext("GET", "/api/v1/health", nil)
	NewHealthHandler(stubHealth{err: errors.New("ping failed")}).GetHealth(ctx)
	assert.Equal(t, 503, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "unhealthy")
}
