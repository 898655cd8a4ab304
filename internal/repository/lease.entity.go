package repository

import (
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/shopspring/decimal"
)

type TenantEntity struct {
	ID    string `gorm:"primaryKey;type:uuid;column:id"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email"`
	Phone string `gorm:"column:phone"`
}

func (TenantEntity) TableName() string {
	return "tenants"
}

type PropertyEntity struct {
	ID      string `gorm:"primaryKey;type:uuid;column:id"`
	Name    string `gorm:"column:name"`
	Address string `gorm:"column:address"`
}

func (PropertyEntity) TableName() string {
	return "properties"
}

type LeaseEntity struct {
	ID            string          `gorm:"primaryKey;type:uuid;column:id"`
	TenantID      string          `gorm:"column:tenant_id;type:uuid;index"`
	PropertyID    string          `gorm:"column:property_id;type:uuid;index"`
	StartDate     time.Time       `gorm:"column:start_date;type:date;not null"`
	EndDate       time.Time       `gorm:"column:end_date;type:date;not null"`
	RentAmount    decimal.Decimal `gorm:"column:rent_amount;type:numeric(12,2);not null"`
	RentCurrency  string          `gorm:"column:rent_currency"`
	DueDay        int             `gorm:"column:due_date;not null"`
	RentFrequency string          `gorm:"column:rent_frequency"`
	Status        string          `gorm:"column:status;not null;index"`
	Tenant        *TenantEntity   `gorm:"foreignKey:TenantID;references:ID"`
	Property      *PropertyEntity `gorm:"foreignKey:PropertyID;references:ID"`
}

func (LeaseEntity) TableName() string {
	return "leases"
}

func toLeaseModel(e *LeaseEntity) *model.Lease {
	if e == nil {
		return nil
	}
	currency := e.RentCurrency
	if currency == "" {
		currency = model.DefaultRentCurrency
	}
	frequency := model.RentFrequency(e.RentFrequency)
	if frequency == "" {
		frequency = model.RentFrequencyMonthly
	}
	return &model.Lease{
		ID:            e.ID,
		TenantID:      e.TenantID,
		PropertyID:    e.PropertyID,
		StartDate:     model.DateOf(e.StartDate),
		EndDate:       model.DateOf(e.EndDate),
		RentAmount:    e.RentAmount,
		RentCurrency:  currency,
		DueDay:        e.DueDay,
		RentFrequency: frequency,
		Status:        model.LeaseStatus(e.Status),
	}
}

func toTenantModel(e *TenantEntity) *model.Tenant {
	if e == nil {
		return nil
	}
	return &model.Tenant{ID: e.ID, Name: e.Name, Email: e.Email, Phone: e.Phone}
}

func toPropertyModel(e *PropertyEntity) *model.Property {
	if e == nil {
		return nil
	}
	return &model.Property{ID: e.ID, Name: e.Name, Address: e.Address}
}

func toLeaseContext(e *LeaseEntity) *model.LeaseContext {
	return &model.LeaseContext{
		Lease:    toLeaseModel(e),
		Tenant:   toTenantModel(e.Tenant),
		Property: toPropertyModel(e.Property),
	}
}
