package services

import (
	"testing"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaseContext() *model.LeaseContext {
	return &model.LeaseContext{
		Lease: &model.Lease{
			ID:            "lease-1",
			TenantID:      "tenant-1",
			PropertyID:    "property-1",
			StartDate:     model.NewDate(2024, time.January, 1),
			EndDate:       model.NewDate(2024, time.December, 31),
			RentAmount:    decimal.NewFromInt(50000),
			RentCurrency:  "KES",
			DueDay:        5,
			RentFrequency: model.RentFrequencyMonthly,
			Status:        model.LeaseStatusActive,
		},
		Tenant:   &model.Tenant{ID: "tenant-1", Name: "Jane Wanjiku", Phone: "+254700000001"},
		Property: &model.Property{ID: "property-1", Name: "Kilimani Court"},
	}
}

func TestMaterializer_Render(t *testing.T) {
	m := NewMaterializer()
	trigger := &model.Trigger{
		Name:            "rent_due_3_days_before",
		Type:            model.TriggerTypeRentDue,
		DayOffset:       -3,
		MessageTemplate: "Hi {{tenant_name}}, rent of {{ rent_amount }} for {{property_name}} is due on {{due_date}}.",
		Priority:        1,
	}
	anchor := model.NewDate(2024, time.April, 5)

	r, err := m.Render(trigger, testLeaseContext(), anchor, anchor.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane Wanjiku, rent of KES 50,000.00 for Kilimani Court is due on 5 April 2024.", r.Message)
	assert.Equal(t, "2 April 2024", r.Variables["trigger_date"])
	assert.Equal(t, "+254700000001", r.Variables["tenant_phone"])
	assert.Equal(t, "50000.00", r.Metadata["rent_amount"])
	assert.Equal(t, "2024-04-05", r.Metadata["anchor_date"])
	assert.Equal(t, -3, r.Metadata["days_offset"])
}

func TestMaterializer_RenderErrors(t *testing.T) {
	m := NewMaterializer()
	anchor := model.NewDate(2024, time.March, 5)
	base := &model.Trigger{Name: "t", Type: model.TriggerTypeRentDue, MessageTemplate: "Hi {{tenant_name}}"}

	t.Run("missing tenant", func(t *testing.T) {
		lc := testLeaseContext()
		lc.Tenant = nil
		_, err := m.Render(base, lc, anchor, anchor)
		assert.True(t, model.IsRenderError(err))
	})

	t.Run("missing property", func(t *testing.T) {
		lc := testLeaseContext()
		lc.Property = nil
		_, err := m.Render(base, lc, anchor, anchor)
		assert.True(t, model.IsRenderError(err))
	})

	t.Run("tenant without name", func(t *testing.T) {
		lc := testLeaseContext()
		lc.Tenant.Name = "  "
		_, err := m.Render(base, lc, anchor, anchor)
		var re *model.RenderError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "tenant_name", re.Placeholder)
	})

	t.Run("unknown placeholder", func(t *testing.T) {
		tr := *base
		tr.MessageTemplate = "Hi {{tenant_nickname}}"
		_, err := m.Render(&tr, testLeaseContext(), anchor, anchor)
		var re *model.RenderError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "tenant_nickname", re.Placeholder)
	})

	t.Run("unused empty value is fine", func(t *testing.T) {
		lc := testLeaseContext()
		lc.Tenant.Email = ""
		_, err := m.Render(base, lc, anchor, anchor)
		assert.NoError(t, err)
	})
}

func TestMaterializer_DueDateForOtherTypes(t *testing.T) {
	m := NewMaterializer()
	lc := testLeaseContext()
	tr := &model.Trigger{Name: "renewal", Type: model.TriggerTypeLeaseRenewal, DayOffset: -30, MessageTemplate: "{{lease_end_date}} {{due_date}}"}
	anchor := lc.Lease.EndDate

	r, err := m.Render(tr, lc, anchor, anchor.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, "31 December 2024 5 December 2024", r.Message)
}

func TestMaterializer_BuildPayload(t *testing.T) {
	m := NewMaterializer()
	reminder := &model.ReminderSchedule{
		ID:                  "r-1",
		LeaseID:             "lease-1",
		TenantID:            "tenant-1",
		ReminderType:        model.TriggerTypeRentDue,
		TriggerDate:         "2024-03-05",
		PersonalizedMessage: "Rent due today",
		TemplateVariables:   map[string]string{"tenant_name": "Jane"},
		Metadata:            map[string]any{"tenant_phone": "+254700000009", "days_offset": float64(0)},
	}

	t.Run("uses the live tenant phone", func(t *testing.T) {
		p, err := m.BuildPayload(&model.ReminderDetails{
			ReminderSchedule: reminder,
			Tenant:           &model.Tenant{Phone: "+254700000001"},
		})
		require.NoError(t, err)
		assert.Equal(t, "+254700000001", p.To)
		assert.Equal(t, "Rent due today", p.Message)
		assert.Equal(t, "Jane", p.TemplateVariables["tenant_name"])
		assert.Equal(t, model.PayloadMetadata{
			ReminderID:   "r-1",
			ReminderType: model.TriggerTypeRentDue,
			TriggerDate:  "2024-03-05",
			LeaseID:      "lease-1",
			TenantID:     "tenant-1",
		}, p.Metadata)
	})

	t.Run("falls back to metadata", func(t *testing.T) {
		r := *reminder
		r.TemplateVariables = nil
		p, err := m.BuildPayload(&model.ReminderDetails{ReminderSchedule: &r})
		require.NoError(t, err)
		assert.Equal(t, "+254700000009", p.To)
		assert.Equal(t, "0", p.TemplateVariables["days_offset"])
	})

	t.Run("no personalized message", func(t *testing.T) {
		r := *reminder
		r.PersonalizedMessage = ""
		_, err := m.BuildPayload(&model.ReminderDetails{ReminderSchedule: &r})
		assert.True(t, model.IsRenderError(err))
	})

	t.Run("bulk skips broken reminders", func(t *testing.T) {
		broken := *reminder
		broken.ID = "r-2"
		broken.PersonalizedMessage = ""
		payloads := m.BulkBuildPayloads([]*model.ReminderDetails{
			{ReminderSchedule: reminder},
			{ReminderSchedule: &broken},
		})
		require.Len(t, payloads, 1)
		assert.Equal(t, "r-1", payloads[0].Metadata.ReminderID)
	})
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"50000", "KES", "KES 50,000.00"},
		{"999.5", "KES", "KES 999.50"},
		{"1234567.891", "USD", "USD 1,234,567.89"},
		{"-1500", "", "-1,500.00"},
		{"0", "KES", "KES 0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}
