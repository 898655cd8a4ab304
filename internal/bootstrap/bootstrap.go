// Package bootstrap builds the dependency graph shared by the api, worker
// and cli binaries from the loaded configuration.
package bootstrap

import (
	"os"
	"strings"

	"github.com/nimasrn/rent-reminders/internal/config"
	"github.com/nimasrn/rent-reminders/internal/queue"
	"github.com/nimasrn/rent-reminders/internal/repository"
	"github.com/nimasrn/rent-reminders/internal/services"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/pg"
	"github.com/nimasrn/rent-reminders/pkg/redis"
	"github.com/pkg/errors"
)

// ArgValue returns the value of a --name=value argument, or "".
func ArgValue(args []string, name string) string {
	prefix := "--" + name + "="
	for _, v := range args {
		if s, ok := strings.CutPrefix(v, prefix); ok {
			return s
		}
	}
	return ""
}

// EnvPath picks the dotenv file passed with --env. A missing file is logged
// and ignored so the process falls back to the plain environment.
func EnvPath(args []string) string {
	path := ArgValue(args, "env")
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Error("failed to open the passed env file", "path", path, "error", err)
		return ""
	}
	return path
}

func PostgresConfigs(c *config.Config) (read, write pg.Config) {
	read = pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
	write = pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
	return read, write
}

func OpenPostgres(c *config.Config) (*pg.DB, error) {
	read, write := PostgresConfigs(c)
	db, err := pg.CreateReadWrite(read, write, pg.PoolOptions{
		MaxOpenConns:    c.PostgresMaxOpenConns,
		MaxIdleConns:    c.PostgresMaxIdleConns,
		ConnMaxLifetime: c.PostgresConnMaxLifetime,
		SlowThreshold:   c.PostgresSlowQuery,
		Debug:           c.AppEnv == "dev" && c.AppDebug,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect postgres %s", write.Redacted())
	}
	return db, nil
}

func OpenRedis(c *config.Config, name string) (redis.RedisAdapter, error) {
	adapter, err := redis.NewRedisAdapter(name, c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: name,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	return adapter, nil
}

func QueueConfig(c *config.Config) queue.QueueConfig {
	return queue.QueueConfig{
		Name:              c.QueueName,
		ConsumerGroup:     c.QueueConsumerGroup,
		ConsumerName:      c.QueueConsumerName,
		MaxRetries:        c.QueueMaxRetries,
		VisibilityTimeout: c.QueueVisibilityTimeout,
		PollInterval:      c.QueuePollInterval,
		BatchSize:         c.QueueBatchSize,
		MaxLen:            c.QueueMaxLen,
		EnableDLQ:         c.QueueEnableDLQ,
	}
}

// Services is the reminder engine wired over one database.
type Services struct {
	Reminders    *repository.ReminderRepository
	Triggers     *services.TriggerService
	Materializer *services.Materializer
	Generator    *services.GeneratorService
	Query        *services.QueryService
	Lifecycle    *services.LifecycleService
	Sweeper      *services.SweeperService
	Cron         *services.CronService
	Health       *services.HealthService
}

// NewServices wires repositories and services. Passing a nil adapter, or a
// config with DispatchEnabled off, leaves the cron run without a publisher.
func NewServices(c *config.Config, db *pg.DB, adapter redis.RedisAdapter) (*Services, error) {
	loc := c.Location()
	reminders := repository.NewReminderRepository(db)
	triggers := services.NewTriggerService(repository.NewTriggerRepository(db))
	materializer := services.NewMaterializer()
	query := services.NewQueryService(reminders, loc)
	generator := services.NewGeneratorService(triggers, repository.NewLeaseRepository(db), reminders, materializer)

	health := services.NewHealthService(db)
	var publisher services.PayloadPublisher
	var locker services.RunLocker
	if adapter != nil {
		locker = adapter
		health.Add("redis", adapter)
		if c.DispatchEnabled {
			q, err := queue.NewQueue(adapter, QueueConfig(c))
			if err != nil {
				return nil, errors.Wrap(err, "create dispatch queue")
			}
			publisher = q
			logger.Info("dispatch publishing enabled", "queue", q.Name())
		}
	}

	return &Services{
		Reminders:    reminders,
		Triggers:     triggers,
		Materializer: materializer,
		Generator:    generator,
		Query:        query,
		Lifecycle:    services.NewLifecycleService(reminders),
		Sweeper:      services.NewSweeperService(reminders, loc),
		Cron:         services.NewCronService(generator, query, materializer, publisher, locker),
		Health:       health,
	}, nil
}
