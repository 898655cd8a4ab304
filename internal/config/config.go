package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/pkg/errors"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every configuration value used by the reminder binaries.
// Nothing else in the module reads the environment directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=rent_reminders"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT,default=5s"`
	HttpWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT,default=35s"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=30s"`
	HttpMaxBodyBytes   int           `env:"HTTP_MAX_BODY_BYTES,default=1048576"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	PostgresSSLMode         string        `env:"POSTGRES_SSLMODE,default=disable"`
	PostgresMaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS,default=20"`
	PostgresMaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS,default=5"`
	PostgresConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME,default=30m"`
	PostgresSlowQuery       time.Duration `env:"POSTGRES_SLOW_QUERY,default=200ms"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=reminders:"`

	PromNamespace     string `env:"PROM_NAMESPACE,default=rent_reminders"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:9100"`

	LogLevel string `env:"LOG_LEVEL"`

	CronSecret            string        `env:"CRON_SECRET"`
	ReminderRetentionDays int           `env:"REMINDER_RETENTION_DAYS,default=90"`
	ReminderTimezone      string        `env:"REMINDER_TIMEZONE,default=UTC"`
	ScheduleGenerateSpec  string        `env:"SCHEDULE_GENERATE_SPEC,default=0 6 * * *"`
	ScheduleDispatchSpec  string        `env:"SCHEDULE_DISPATCH_SPEC,default=0 9 * * *"`
	ScheduleSweepSpec     string        `env:"SCHEDULE_SWEEP_SPEC,default=30 3 * * *"`
	ScheduleJobTimeout    time.Duration `env:"SCHEDULE_JOB_TIMEOUT,default=5m"`

	DispatchEnabled        bool          `env:"DISPATCH_ENABLED,default=false"`
	QueueName              string        `env:"QUEUE_NAME,default=reminders:dispatch"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=dispatchers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	ProviderPrimaryUrl   string        `env:"PROVIDER_PRIMARY_URL"`
	ProviderSecondaryUrl string        `env:"PROVIDER_SECONDARY_URL"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT,default=5s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	logger.SetLevel(c.LogLevel)
	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the active configuration. Used by tests and tools that build
// a Config by hand.
func Set(c *Config) {
	config = c
}

// Location resolves ReminderTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.ReminderTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		logger.Warn("unknown reminder timezone, using UTC", "timezone", c.ReminderTimezone, "error", err)
		return time.UTC
	}
	return loc
}
