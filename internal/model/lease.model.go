package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusExpired    LeaseStatus = "expired"
)

type RentFrequency string

const (
	RentFrequencyMonthly   RentFrequency = "monthly"
	RentFrequencyQuarterly RentFrequency = "quarterly"
	RentFrequencyAnnually  RentFrequency = "annually"
)

const DefaultRentCurrency = "KES"

// Lease is owned by the property management side; reminders only read it.
// DueDay is the day of month rent falls due (1-31).
type Lease struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	PropertyID    string          `json:"property_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	RentCurrency  string          `json:"rent_currency"`
	DueDay        int             `json:"due_date"`
	RentFrequency RentFrequency   `json:"rent_frequency"`
	Status        LeaseStatus     `json:"status"`
}

type Tenant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

type Property struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// LeaseContext is a lease joined with its tenant and property. Tenant or
// Property is nil when the referenced row is missing.
type LeaseContext struct {
	Lease    *Lease
	Tenant   *Tenant
	Property *Property
}

// Covers reports whether day falls within the tenancy, both ends inclusive.
// A zero start or end leaves that side open.
func (l *Lease) Covers(day time.Time) bool {
	day = DateOf(day)
	if !l.StartDate.IsZero() && day.Before(DateOf(l.StartDate)) {
		return false
	}
	return l.EndDate.IsZero() || !day.After(DateOf(l.EndDate))
}

// RentDueIn reports whether rent falls due in the given month according to
// the lease frequency, counting from the start month.
func (l *Lease) RentDueIn(year int, month time.Month) bool {
	elapsed := (year-l.StartDate.Year())*12 + int(month) - int(l.StartDate.Month())
	if elapsed < 0 {
		return false
	}
	switch l.RentFrequency {
	case RentFrequencyQuarterly:
		return elapsed%3 == 0
	case RentFrequencyAnnually:
		return elapsed%12 == 0
	default:
		return true
	}
}
