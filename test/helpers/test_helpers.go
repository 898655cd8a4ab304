package helpers

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/rent-reminders/internal/repository"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"github.com/nimasrn/rent-reminders/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TestDB struct {
	*pg.DB
	Raw *gorm.DB
}

// SetupTestDB opens an in-memory SQLite database with the reminder schema.
// A single connection keeps every query on the same in-memory database.
func SetupTestDB(t *testing.T) *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&repository.TenantEntity{},
		&repository.PropertyEntity{},
		&repository.LeaseEntity{},
		&repository.TriggerEntity{},
		&repository.ReminderEntity{},
	)
	require.NoError(t, err)

	return &TestDB{DB: pg.NewDB(db, db), Raw: db}
}

// SetupTestRedis starts a miniredis bound to the test. Adapters are cached
// by name, so each test gets its own.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// Insert stores each row and fails the test on the first error.
func (db *TestDB) Insert(t *testing.T, rows ...any) {
	for _, r := range rows {
		require.NoError(t, db.Raw.Create(r).Error)
	}
}
