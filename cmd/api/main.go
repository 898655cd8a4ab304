package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/rent-reminders/internal/bootstrap"
	"github.com/nimasrn/rent-reminders/internal/config"
	"github.com/nimasrn/rent-reminders/internal/handlers"
	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(bootstrap.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting reminders api", "version", version, "commit", commit, "date", date)

	s := xhttp.CreateServer(
		xhttp.WithName(cfg.AppName),
		xhttp.WithTimeouts(cfg.HttpReadTimeout, cfg.HttpWriteTimeout),
		xhttp.WithMaxBodySize(cfg.HttpMaxBodyBytes),
	)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CORSMiddleware)
	s.Use(xhttp.RecoverMiddleware)

	db, err := bootstrap.OpenPostgres(cfg)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	// redis is only needed for the cron publish lock and the dispatch queue
	var adapter redis.RedisAdapter
	if cfg.RedisAddr != "" {
		adapter, err = bootstrap.OpenRedis(cfg, "default")
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
	}

	svc, err := bootstrap.NewServices(cfg, db, adapter)
	if err != nil {
		logger.Error("failed wiring services", "error", err)
		return
	}

	reminderHandler := handlers.NewReminderHandler(svc.Generator, svc.Query, svc.Lifecycle, svc.Materializer, svc.Sweeper, cfg.ReminderRetentionDays)
	triggerHandler := handlers.NewTriggerHandler(svc.Triggers)
	cronHandler := handlers.NewCronHandler(svc.Cron, cfg.CronSecret)
	healthHandler := handlers.NewHealthHandler(svc.Health)

	g := s.Router.Group("/api/v1")
	handlers.RegisterReminderRoutes(g, reminderHandler)
	handlers.RegisterTriggerRoutes(g, triggerHandler)
	handlers.RegisterCronRoutes(g, cronHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down reminders api")
	s.Shutdown()
}
