package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/internal/repository"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testStore struct {
	raw       *gorm.DB
	db        *pg.DB
	triggers  *repository.TriggerRepository
	leases    *repository.LeaseRepository
	reminders *repository.ReminderRepository
}

func newTestStore(t *testing.T) *testStore {
	raw, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := raw.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, raw.AutoMigrate(
		&repository.TenantEntity{},
		&repository.PropertyEntity{},
		&repository.LeaseEntity{},
		&repository.TriggerEntity{},
		&repository.ReminderEntity{},
	))

	db := pg.NewDB(raw, raw)
	return &testStore{
		raw:       raw,
		db:        db,
		triggers:  repository.NewTriggerRepository(db),
		leases:    repository.NewLeaseRepository(db),
		reminders: repository.NewReminderRepository(db),
	}
}

func (s *testStore) seedDefaults(t *testing.T) {
	_, err := NewTriggerService(s.triggers).SeedDefaults(context.Background())
	require.NoError(t, err)
}

// seedLease stores a tenant, a property and an active monthly lease for
// 2024 with rent 50000 due on the 5th.
func (s *testStore) seedLease(t *testing.T, mutate func(l *repository.LeaseEntity, tn *repository.TenantEntity)) *repository.LeaseEntity {
	tenant := &repository.TenantEntity{ID: uuid.NewString(), Name: "Jane Wanjiku", Phone: "+254700000001", Email: "jane@example.com"}
	property := &repository.PropertyEntity{ID: uuid.NewString(), Name: "Kilimani Court", Address: "Argwings Kodhek Rd"}
	lease := &repository.LeaseEntity{
		ID:            uuid.NewString(),
		TenantID:      tenant.ID,
		PropertyID:    property.ID,
		StartDate:     model.NewDate(2024, time.January, 1),
		EndDate:       model.NewDate(2024, time.December, 31),
		RentAmount:    decimal.NewFromInt(50000),
		RentCurrency:  "KES",
		DueDay:        5,
		RentFrequency: string(model.RentFrequencyMonthly),
		Status:        string(model.LeaseStatusActive),
	}
	if mutate != nil {
		mutate(lease, tenant)
	}
	require.NoError(t, s.raw.Create(tenant).Error)
	require.NoError(t, s.raw.Create(property).Error)
	require.NoError(t, s.raw.Create(lease).Error)
	return lease
}

func (s *testStore) generator() *GeneratorService {
	return NewGeneratorService(NewTriggerService(s.triggers), s.leases, s.reminders, NewMaterializer())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
