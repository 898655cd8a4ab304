package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/rent-reminders/internal/queue"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/prom"
	"github.com/nimasrn/rent-reminders/pkg/redis"
	"github.com/nimasrn/rent-reminders/pkg/worker"
)

type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Config struct {
	Queue             queue.QueueConfig
	Consumers         int
	Workers           int
	BufferSize        int
	ProcessingTimeout time.Duration
	ReportInterval    time.Duration
	HealthInterval    time.Duration
	ShutdownTimeout   time.Duration
	// PendingAlert is the pending-entry count above which health checks warn.
	PendingAlert int64
}

func (c *Config) applyDefaults() {
	if c.Consumers < 1 {
		c.Consumers = 1
	}
	if c.Workers < 1 {
		c.Workers = 8
	}
	if c.BufferSize < 1 {
		c.BufferSize = 1024
	}
	if c.ProcessingTimeout <= 0 {
		c.ProcessingTimeout = 10 * time.Second
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = 30 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = time.Minute
	}
	if c.PendingAlert <= 0 {
		c.PendingAlert = 10_000
	}
}

// Dispatcher consumes published reminder payloads from the Redis stream and
// runs them through a Processor on a bounded worker pool.
type Dispatcher struct {
	adapter   redis.RedisAdapter
	config    Config
	processor Processor
	queues    []*queue.Queue
	stats     *Stats
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

func NewDispatcher(adapter redis.RedisAdapter, config Config, processor Processor) (*Dispatcher, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if config.Queue.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		adapter:   adapter,
		config:    config,
		processor: processor,
		stats:     NewStats(),
		worker:    worker.NewWorkerManager(config.BufferSize, config.Workers),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (d *Dispatcher) Start() error {
	logger.Info("starting dispatcher", "processor", d.processor.GetType(), "queue", d.config.Queue.Name)

	d.worker.SetWorker(d.workerHandler)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.worker.Start(); err != nil {
			logger.Info("worker pool stopped", "reason", err)
		}
	}()

	for i := 0; i < d.config.Consumers; i++ {
		qc := d.config.Queue
		if qc.ConsumerName == "" {
			qc.ConsumerName = "dispatcher"
		}
		qc.ConsumerName = fmt.Sprintf("%s-%d", qc.ConsumerName, i)

		q, err := queue.NewQueue(d.adapter, qc)
		if err != nil {
			return fmt.Errorf("failed to create consumer %d: %w", i, err)
		}
		if err := q.Consume(d.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		d.queues = append(d.queues, q)
	}

	d.wg.Add(2)
	go d.statsReporter()
	go d.healthChecker()

	logger.Info("dispatcher started", "consumers", len(d.queues), "workers", d.config.Workers)
	return nil
}

func (d *Dispatcher) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}

func (d *Dispatcher) statsReporter() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.reportStats()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) reportStats() {
	s := d.stats.Snapshot()
	logger.Info("dispatcher stats",
		"delivered", s.Delivered,
		"failed", s.Failed,
		"rate_per_second", s.RatePerSecond,
		"avg_duration_ms", s.AvgDurationMs,
		"uptime_seconds", s.UptimeSeconds)

	if len(d.queues) == 0 {
		return
	}
	// consumers share one stream so any of them reports the same numbers
	if qs, err := d.queues[0].GetStats(); err == nil {
		logger.Info("dispatch queue stats",
			"queue", d.queues[0].Name(),
			"total", qs.TotalMessages,
			"pending", qs.PendingMessages,
			"dead_letters", qs.DeadLetters)
	}
}

func (d *Dispatcher) healthChecker() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.checkHealth()
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) checkHealth() {
	ctx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
	defer cancel()
	if err := d.adapter.Ping(ctx); err != nil {
		logger.Error("dispatcher health check failed: redis unreachable", "error", err)
		return
	}
	if len(d.queues) == 0 {
		return
	}
	qs, err := d.queues[0].GetStats()
	if err != nil {
		logger.Warn("dispatcher health check: queue stats unavailable", "error", err)
		return
	}
	if qs.PendingMessages > d.config.PendingAlert {
		logger.Warn("dispatcher health check: queue lagging", "pending", qs.PendingMessages)
	}
}

// Stop drains the consumers, then the worker pool. Safe to call twice.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		logger.Info("stopping dispatcher")
		d.cancel()

		var qwg sync.WaitGroup
		for _, q := range d.queues {
			qwg.Add(1)
			go func(q *queue.Queue) {
				defer qwg.Done()
				if err := q.Stop(d.config.ShutdownTimeout); err != nil {
					logger.Error("error stopping consumer", "queue", q.Name(), "error", err)
				}
			}(q)
		}
		qwg.Wait()

		d.worker.Exit()
		d.wg.Wait()
		d.reportStats()
		logger.Info("dispatcher stopped")
	})
}

type job struct {
	msg        *queue.Message
	resultChan chan error
	ctx        context.Context
}

// messageHandler hands a queue entry to the worker pool and blocks until a
// worker reports back, so the queue acks only finished work.
func (d *Dispatcher) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, d.config.ProcessingTimeout)
	defer cancel()

	j := &job{msg: msg, resultChan: make(chan error, 1), ctx: msgCtx}
	if !d.worker.Enqueue(j) {
		return fmt.Errorf("dispatcher is stopping")
	}

	prom.AddDispatchInFlight(d.config.Queue.Name, 1)
	defer prom.AddDispatchInFlight(d.config.Queue.Name, -1)

	select {
	case err := <-j.resultChan:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", msgCtx.Err())
	}
}

func (d *Dispatcher) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("invalid job type in worker", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("job expired before a worker picked it up", "worker", workerIndex, "queue_id", j.msg.ID)
		return
	}

	start := time.Now()
	err := d.processor.Process(j.ctx, j.msg)
	if err != nil {
		d.stats.RecordFailure()
		logger.Error("failed to process reminder", "worker", workerIndex, "queue_id", j.msg.ID, "error", err)
	} else {
		d.stats.RecordSuccess(time.Since(start))
	}

	// resultChan is buffered, the waiting handler may already have given up
	j.resultChan <- err
}
