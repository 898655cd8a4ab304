package pg

import (
	"context"

	_ "github.com/lib/pq"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate runs a goose command ("up", "down", "status", "version") against
// the SQL migrations in dir.
func Migrate(ctx context.Context, cfg Config, dir string, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if command == "" {
		command = "up"
	}
	logger.Info("running migrations", "db", cfg.Redacted(), "dir", dir, "command", command)
	return goose.RunContext(ctx, command, db, dir)
}
