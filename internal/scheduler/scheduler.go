package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
	"github.com/robfig/cron/v3"
)

const (
	JobGenerate = "generate"
	JobDispatch = "dispatch"
	JobSweep    = "sweep"
)

type MonthGenerator interface {
	GenerateFor(ctx context.Context, date time.Time) (*model.GenerationResult, error)
}

type DueDispatcher interface {
	Dispatch(ctx context.Context) (*model.CronResult, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, retentionDays int) (*model.SweepResult, error)
}

// Specs holds one standard five-field cron expression per job. An empty
// spec leaves that job unscheduled.
type Specs struct {
	Generate string
	Dispatch string
	Sweep    string
}

type JobFunc func(ctx context.Context) error

// Scheduler runs the reminder jobs on a robfig cron engine. Every run gets
// its own timeout context and overlapping runs of the same job are skipped.
type Scheduler struct {
	engine  *cron.Cron
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time

	mu   sync.Mutex
	jobs map[string]JobFunc
}

func New(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		engine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		timeout: timeout,
		loc:     loc,
		now:     time.Now,
		jobs:    make(map[string]JobFunc),
	}
}

// Add registers fn under name and schedules it by spec.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	if spec != "" {
		if _, err := s.engine.AddFunc(spec, func() { _ = s.RunNow(context.Background(), name) }); err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
		}
	}
	s.jobs[name] = fn
	logger.Info("scheduled job registered", "job", name, "spec", spec)
	return nil
}

// RegisterReminderJobs wires the generate, dispatch and sweep jobs.
// dispatch may be nil when publishing is disabled.
func (s *Scheduler) RegisterReminderJobs(specs Specs, gen MonthGenerator, dispatch DueDispatcher, sweeper Sweeper, retentionDays int) error {
	if err := s.Add(JobGenerate, specs.Generate, func(ctx context.Context) error {
		res, err := gen.GenerateFor(ctx, s.now().In(s.loc))
		if err != nil {
			return err
		}
		logger.Info("scheduled generation done", "month", res.Month, "year", res.Year,
			"generated", res.Generated, "skipped", res.Skipped, "errors", res.Errors)
		return nil
	}); err != nil {
		return err
	}

	if dispatch != nil {
		if err := s.Add(JobDispatch, specs.Dispatch, func(ctx context.Context) error {
			res, err := dispatch.Dispatch(ctx)
			if err != nil {
				return err
			}
			logger.Info("scheduled dispatch done", "due", res.TodaysReminders, "messages", res.Messages, "published", res.Published)
			return nil
		}); err != nil {
			return err
		}
	}

	return s.Add(JobSweep, specs.Sweep, func(ctx context.Context) error {
		res, err := sweeper.Sweep(ctx, retentionDays)
		if err != nil {
			return err
		}
		logger.Info("scheduled sweep done", "deleted", res.DeletedCount, "cutoff", res.Cutoff)
		return nil
	})
}

// RunNow executes a registered job immediately with the scheduler timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	prom.AddJobDuration(name, elapsed.Seconds())

	if err != nil {
		logger.Error("scheduled job failed", "job", name, "duration", elapsed, "error", err)
		return err
	}
	logger.Debug("scheduled job finished", "job", name, "duration", elapsed)
	return nil
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	return names
}

func (s *Scheduler) Start() {
	s.engine.Start()
	logger.Info("scheduler started", "jobs", len(s.engine.Entries()), "timezone", s.loc.String())
}

// Stop halts the engine and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		logger.Info("scheduler stopped")
	case <-ctx.Done():
		logger.Warn("scheduler stop timed out with jobs still running")
	}
}
