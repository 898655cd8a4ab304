package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/rent-reminders/internal/bootstrap"
	"github.com/nimasrn/rent-reminders/internal/config"
	"github.com/nimasrn/rent-reminders/internal/dispatcher"
	"github.com/nimasrn/rent-reminders/internal/messaging"
	"github.com/nimasrn/rent-reminders/internal/scheduler"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
	"github.com/nimasrn/rent-reminders/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// worker runs the scheduled jobs and, when DISPATCH_ENABLED is set, the
// dispatch consumers. With --run=<job> it runs that one job and exits.
func main() {
	err := config.Load(bootstrap.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting reminders worker", "version", version, "commit", commit, "date", date)

	db, err := bootstrap.OpenPostgres(cfg)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	adapter, err := bootstrap.OpenRedis(cfg, "default")
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	svc, err := bootstrap.NewServices(cfg, db, adapter)
	if err != nil {
		logger.Error("failed wiring services", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	sched := scheduler.New(cfg.Location(), cfg.ScheduleJobTimeout)
	var dispatchJob scheduler.DueDispatcher
	if cfg.DispatchEnabled {
		dispatchJob = svc.Cron
	}
	specs := scheduler.Specs{
		Generate: cfg.ScheduleGenerateSpec,
		Dispatch: cfg.ScheduleDispatchSpec,
		Sweep:    cfg.ScheduleSweepSpec,
	}
	if err := sched.RegisterReminderJobs(specs, svc.Generator, dispatchJob, svc.Sweeper, cfg.ReminderRetentionDays); err != nil {
		logger.Error("failed to register scheduled jobs", "error", err)
		return
	}

	if job := bootstrap.ArgValue(os.Args, "run"); job != "" {
		if err := sched.RunNow(context.Background(), job); err != nil {
			logger.Error("job failed", "job", job, "error", err)
			os.Exit(1)
		}
		return
	}

	var d *dispatcher.Dispatcher
	if cfg.DispatchEnabled {
		d, err = newDispatcher(cfg, adapter, svc)
		if err != nil {
			logger.Error("failed to create dispatcher", "error", err)
			return
		}
		if err := d.Start(); err != nil {
			logger.Error("failed to start dispatcher", "error", err)
			return
		}
	}

	go prom.ListenAndServer(cfg.MetricsListenAddr, "/metrics")
	sched.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down reminders worker")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	sched.Stop(ctx)
	if d != nil {
		d.Stop()
	}
}

func newDispatcher(cfg *config.Config, adapter redis.RedisAdapter, svc *bootstrap.Services) (*dispatcher.Dispatcher, error) {
	client, err := messaging.NewClient(messaging.Config{
		Providers: []messaging.ProviderConfig{
			{Name: "primary", URL: cfg.ProviderPrimaryUrl},
			{Name: "secondary", URL: cfg.ProviderSecondaryUrl},
		},
		Timeout:    cfg.ProviderTimeout,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		MaxConns:   256,
	})
	if err != nil {
		return nil, err
	}
	for name, ok := range client.Health(context.Background()) {
		logger.Info("messaging provider health", "provider", name, "healthy", ok)
	}

	idem := dispatcher.NewIdempotencyService(adapter, dispatcher.DefaultIdempotencyConfig())
	processor := dispatcher.NewReminderProcessor(client, svc.Lifecycle, idem)
	return dispatcher.NewDispatcher(adapter, dispatcher.Config{
		Queue:     bootstrap.QueueConfig(cfg),
		Consumers: cfg.QueueConsumers,
	}, processor)
}
