package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/nimasrn/rent-reminders/pkg/redis"
)

const (
	fieldData      = "data"
	fieldTimestamp = "timestamp"
	metaPrefix     = "meta_"
	dlqSuffix      = ":dlq"

	// claimScanLimit bounds how many pending entries one reclaim pass inspects.
	claimScanLimit = 100
)

var (
	ErrAlreadyAcked  = errors.New("message already acknowledged")
	ErrAlreadyNacked = errors.New("message already rejected")
)

// Message is one entry read from the stream. Attempts counts how many times
// it was delivered before this read. MaxDeliveries is the queue's delivery
// budget; zero means unknown.
type Message struct {
	ID            string
	Data          []byte
	Metadata      map[string]string
	Timestamp     time.Time
	Attempts      int
	MaxDeliveries int
	acked         bool
	nacked    bool
	queue     *Queue
}

// Decode unmarshals the JSON body into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode message %s: %w", m.ID, err)
	}
	return nil
}

// LastDelivery reports whether the queue dead-letters this entry instead of
// redelivering it when the handler fails now.
func (m *Message) LastDelivery() bool {
	return m.MaxDeliveries > 0 && m.Attempts+1 >= m.MaxDeliveries
}

func (m *Message) Ack() error {
	if err := m.settle(); err != nil {
		return err
	}
	m.acked = true
	return m.queue.ack(m.ID)
}

// Nack leaves the message pending so it is reclaimed after the visibility
// timeout.
func (m *Message) Nack() error {
	if err := m.settle(); err != nil {
		return err
	}
	m.nacked = true
	return nil
}

func (m *Message) settle() error {
	switch {
	case m.acked:
		return ErrAlreadyAcked
	case m.nacked:
		return ErrAlreadyNacked
	}
	return nil
}

// MessageHandler processes one message. A nil return acks it; an error
// leaves it pending for redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name          string
	ConsumerGroup string
	ConsumerName  string
	// MaxRetries is the number of deliveries after which a message goes to
	// the dead letter stream instead of the handler.
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

func (c *QueueConfig) applyDefaults() {
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "default-group"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
}

// Queue is a Redis stream with one consumer group. Publishing and consuming
// can share an instance; each consuming instance needs its own ConsumerName.
type Queue struct {
	adapter redis.RedisAdapter
	config  QueueConfig
	handler MessageHandler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	DeadLetters     int64
	ConsumerCount   int64
}

// NewQueue binds a Redis stream and consumer group. The group is created
// with the stream when missing.
func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	err := adapter.XGroupCreateMkStream(config.Name, config.ConsumerGroup, "0")
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		logger.Warn("queue consumer group not created", "queue", config.Name, "group", config.ConsumerGroup, "error", err)
	}
	return q, nil
}

func (q *Queue) Name() string {
	return q.config.Name
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		fieldData:      string(data),
		fieldTimestamp: strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("queue trim failed", "queue", q.config.Name, "error", err)
		}
	}
	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, body, metadata)
}

// Consume starts the poll loop in the background. Stop ends it.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	q.handler = handler

	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.reclaimExpired()
			q.readNew()
		}
	}
}

func (q *Queue) readNew() {
	msgs, err := q.adapter.XReadGroup(q.config.ConsumerGroup, q.config.ConsumerName, q.config.Name, ">", q.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}
	for _, sm := range msgs {
		q.handle(q.toMessage(sm))
	}
}

// reclaimExpired takes over entries whose visibility timeout ran out,
// whichever consumer they were delivered to.
func (q *Queue) reclaimExpired() {
	pending, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", claimScanLimit)
	if err != nil || len(pending) == 0 {
		return
	}

	var ids []string
	deliveries := make(map[string]int, len(pending))
	for _, p := range pending {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			deliveries[p.ID] = int(p.RetryCount)
		}
	}
	if len(ids) == 0 {
		return
	}

	msgs, err := q.adapter.XClaim(q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("queue claim failed", "queue", q.config.Name, "error", err)
		return
	}
	for _, sm := range msgs {
		msg := q.toMessage(sm)
		msg.Attempts = deliveries[msg.ID]
		q.handle(msg)
	}
}

func (q *Queue) handle(msg *Message) {
	if msg.Attempts >= q.config.MaxRetries {
		logger.Warn("queue message exhausted retries", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts)
		q.deadLetter(msg)
		if err := q.ack(msg.ID); err != nil {
			logger.Error("queue ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		logger.Debug("queue message left pending", "queue", q.config.Name, "id", msg.ID, "error", err)
		return
	}
	if msg.nacked || msg.acked {
		return
	}
	if err := q.ack(msg.ID); err != nil {
		logger.Error("queue ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) ack(id string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, id)
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}

	values := map[string]interface{}{
		fieldData:        string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values[metaPrefix+k] = v
	}

	if _, err := q.adapter.XAdd(q.config.Name+dlqSuffix, values); err != nil {
		logger.Error("queue dead letter failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) toMessage(sm redis.StreamMessage) *Message {
	msg := &Message{
		ID:            sm.ID,
		Metadata:      make(map[string]string),
		MaxDeliveries: q.config.MaxRetries,
		queue:         q,
	}

	for k, v := range sm.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case fieldData:
			msg.Data = []byte(s)
		case fieldTimestamp:
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0)
			}
		default:
			if name, ok := strings.CutPrefix(k, metaPrefix); ok && name != "" {
				msg.Metadata[name] = s
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

// Stop cancels the poll loop and waits up to timeout for it to exit.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue %s to stop", q.config.Name)
	}
}

func (q *Queue) GetStats() (*QueueStats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}
	stats := &QueueStats{TotalMessages: total}

	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	if dlq, err := q.adapter.XLen(q.config.Name + dlqSuffix); err == nil {
		stats.DeadLetters = dlq
	}
	return stats, nil
}
