package fixtures

import (
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/internal/repository"
	"github.com/shopspring/decimal"
)

const DueTodayTemplate = "Hi {{tenant_name}}, your rent of {{rent_amount}} for {{property_name}} is due today, {{due_date}}."

func NewTenant(name, phone string) *repository.TenantEntity {
	return &repository.TenantEntity{
		ID:    uuid.NewString(),
		Name:  name,
		Email: "tenant@example.com",
		Phone: phone,
	}
}

func NewProperty(name string) *repository.PropertyEntity {
	return &repository.PropertyEntity{
		ID:      uuid.NewString(),
		Name:    name,
		Address: "Argwings Kodhek Rd, Nairobi",
	}
}

// NewMonthlyLease returns an active monthly lease that started two months
// before today and runs for another year, with rent due on dueDay.
func NewMonthlyLease(tenant *repository.TenantEntity, property *repository.PropertyEntity, today time.Time, dueDay int) *repository.LeaseEntity {
	return &repository.LeaseEntity{
		ID:            uuid.NewString(),
		TenantID:      tenant.ID,
		PropertyID:    property.ID,
		StartDate:     model.DateOf(today.AddDate(0, -2, 0)),
		EndDate:       model.DateOf(today.AddDate(1, 0, 0)),
		RentAmount:    decimal.NewFromInt(50000),
		RentCurrency:  "KES",
		DueDay:        dueDay,
		RentFrequency: string(model.RentFrequencyMonthly),
		Status:        string(model.LeaseStatusActive),
	}
}

// DueTodayTrigger fires on the rent due date itself.
func DueTodayTrigger() model.TriggerUpsertRequest {
	offset, priority, active := 0, 1, true
	return model.TriggerUpsertRequest{
		Name:            "rent_due_today",
		Type:            model.TriggerTypeRentDue,
		DayOffset:       &offset,
		IsActive:        &active,
		MessageTemplate: DueTodayTemplate,
		Priority:        &priority,
	}
}
