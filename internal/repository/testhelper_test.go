package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db := openSQLite(t)
	return &testDB{
		DB:    pg.NewDB(db, db),
		rawDB: db,
	}
}

// setupReplicatedTestDB reads from a second database that only sees rows
// copied into it explicitly, the way a lagging replica would.
func setupReplicatedTestDB(t *testing.T) (*testDB, *gorm.DB) {
	primary, replica := openSQLite(t), openSQLite(t)
	return &testDB{
		DB:    pg.NewDB(replica, primary),
		rawDB: primary,
	}, replica
}

func openSQLite(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&TenantEntity{}, &PropertyEntity{}, &LeaseEntity{}, &TriggerEntity{}, &ReminderEntity{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func (d *testDB) seedLease(t *testing.T, mutate func(l *LeaseEntity)) *LeaseEntity {
	tenant := &TenantEntity{ID: uuid.NewString(), Name: "Jane Wanjiku", Phone: "+254700000001"}
	property := &PropertyEntity{ID: uuid.NewString(), Name: "Kilimani Court", Address: "Argwings Kodhek Rd"}
	require.NoError(t, d.rawDB.Create(tenant).Error)
	require.NoError(t, d.rawDB.Create(property).Error)

	lease := &LeaseEntity{
		ID:            uuid.NewString(),
		TenantID:      tenant.ID,
		PropertyID:    property.ID,
		StartDate:     model.NewDate(2024, time.January, 1),
		EndDate:       model.NewDate(2024, time.December, 31),
		RentAmount:    decimal.NewFromInt(50000),
		RentCurrency:  "KES",
		DueDay:        5,
		RentFrequency: "monthly",
		Status:        "active",
	}
	if mutate != nil {
		mutate(lease)
	}
	require.NoError(t, d.rawDB.Create(lease).Error)
	return lease
}

func newReminder(leaseID, triggerName, date string) *model.ReminderSchedule {
	return &model.ReminderSchedule{
		LeaseID:             leaseID,
		TenantID:            uuid.NewString(),
		PropertyID:          uuid.NewString(),
		TriggerName:         triggerName,
		ReminderType:        model.TriggerTypeRentDue,
		TriggerDate:         date,
		Status:              model.ReminderStatusPending,
		Priority:            1,
		MessageTemplate:     "Hi {{tenant_name}}",
		PersonalizedMessage: "Hi Jane",
		TriggerConfig:       model.TriggerConfig{Name: triggerName, Type: model.TriggerTypeRentDue, Priority: 1},
		TemplateVariables:   map[string]string{"tenant_name": "Jane"},
		Metadata:            map[string]any{"tenant_name": "Jane"},
	}
}

func mustCreate(t *testing.T, repo *ReminderRepository, m *model.ReminderSchedule) *model.ReminderSchedule {
	created, err := repo.CreateIfAbsent(context.Background(), m)
	require.NoError(t, err)
	return created
}
