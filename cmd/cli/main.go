package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/nimasrn/rent-reminders/internal/bootstrap"
	"github.com/nimasrn/rent-reminders/internal/config"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/pg"
)

const usage = `usage: cli <command> [--env=.env] [flags]

commands:
  migrate   apply SQL migrations (--dir=./migrations --goose=up|down|status|version)
  seed      install the default reminder triggers
  generate  generate reminders for a month (--month=3 --year=2024)
  sweep     delete sent reminders older than the retention window (--days=90)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := config.Load(bootstrap.EnvPath(os.Args)); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	var err error
	switch os.Args[1] {
	case "migrate":
		err = migrate(ctx)
	case "seed":
		err = seed(ctx)
	case "generate":
		err = generate(ctx)
	case "sweep":
		err = sweep(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context) error {
	dir := bootstrap.ArgValue(os.Args, "dir")
	if dir == "" {
		dir = "./migrations"
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations dir %s: %w", dir, err)
	}
	_, write := bootstrap.PostgresConfigs(config.Get())
	return pg.Migrate(ctx, write, dir, bootstrap.ArgValue(os.Args, "goose"))
}

func services() (*bootstrap.Services, error) {
	db, err := bootstrap.OpenPostgres(config.Get())
	if err != nil {
		return nil, err
	}
	return bootstrap.NewServices(config.Get(), db, nil)
}

func seed(ctx context.Context) error {
	svc, err := services()
	if err != nil {
		return err
	}
	triggers, err := svc.Triggers.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	logger.Info("default triggers seeded", "count", len(triggers))
	return nil
}

func generate(ctx context.Context) error {
	svc, err := services()
	if err != nil {
		return err
	}
	now := svc.Query.Today()
	month, year := int(now.Month()), now.Year()
	if v := bootstrap.ArgValue(os.Args, "month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid --month %q", v)
		}
	}
	if v := bootstrap.ArgValue(os.Args, "year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid --year %q", v)
		}
	}
	res, err := svc.Generator.Generate(ctx, month, year)
	if err != nil {
		return err
	}
	logger.Info("reminders generated", "month", res.Month, "year", res.Year,
		"generated", res.Generated, "skipped", res.Skipped, "errors", res.Errors)
	return nil
}

func sweep(ctx context.Context) error {
	svc, err := services()
	if err != nil {
		return err
	}
	days := config.Get().ReminderRetentionDays
	if v := bootstrap.ArgValue(os.Args, "days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid --days %q", v)
		}
	}
	res, err := svc.Sweeper.Sweep(ctx, days)
	if err != nil {
		return err
	}
	logger.Info("reminders swept", "deleted", res.DeletedCount, "retention_days", res.RetentionDays)
	return nil
}
