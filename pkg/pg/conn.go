package pg

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/nimasrn/rent-reminders/pkg/logger"
)

type Config struct {
	User     string `env:"USER"`
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	Password string `env:"PASSWORD"`
	Database string `env:"DBNAME"`
	SSLMode  string `env:"SSLMODE"`
}

// DSN renders a keyword/value connection string pinned to UTC.
func (c Config) DSN() string {
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", c.Host, c.User, c.Password, c.Database, c.Port, ssl)
}

// Redacted is the DSN in URL form with the password masked, for logs.
func (c Config) Redacted() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, "xxxxx"),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Database,
	}
	return u.String()
}

func newSqlConnection(config Config) (*sql.DB, error) {
	return sql.Open("postgres", config.DSN())
}

// queryLogWriter sends gorm's slow query and error lines to the process
// logger.
type queryLogWriter struct{}

func (queryLogWriter) Printf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}
