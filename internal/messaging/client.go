package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/valyala/fasthttp"
)

const (
	SendPath   = "/api/v1/messages/send"
	HealthPath = "/health"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

var ErrNoAvailableProviders = errors.New("no available messaging providers")

// RejectedError means a provider accepted the request and refused the
// message. Retrying the same payload will not help.
type RejectedError struct {
	Provider string
	Reason   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider %s rejected message: %s", e.Provider, e.Reason)
}

func IsRejected(err error) bool {
	var r *RejectedError
	return errors.As(err, &r)
}

type ProviderConfig struct {
	Name string
	URL  string
}

type Config struct {
	// Providers are tried in order; later ones are fallbacks.
	Providers        []ProviderConfig
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	MaxConns         int
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// Dial overrides the network dialer. Tests use it with an in-memory listener.
	Dial func(addr string) (net.Conn, error)
}

type provider struct {
	name   string
	url    string
	client *fasthttp.Client

	sent             atomic.Int64
	failed           atomic.Int64
	consecutiveFails atomic.Int32
	openUntil        atomic.Int64
}

func (p *provider) available(now time.Time) bool {
	return now.UnixNano() >= p.openUntil.Load()
}

// Client delivers payloads to the messaging collaborator over HTTP with
// provider failover and a per-provider circuit breaker.
type Client struct {
	config    Config
	providers []*provider
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, errors.New("at least one messaging provider is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	c := &Client{config: cfg}
	for _, pc := range cfg.Providers {
		if pc.URL == "" {
			continue
		}
		c.providers = append(c.providers, &provider{
			name: pc.Name,
			url:  pc.URL,
			client: &fasthttp.Client{
				MaxConnsPerHost:     cfg.MaxConns,
				ReadTimeout:         cfg.Timeout,
				WriteTimeout:        cfg.Timeout,
				MaxIdleConnDuration: time.Minute,
				Dial:                cfg.Dial,
			},
		})
		logger.Info("messaging provider configured", "name", pc.Name, "url", pc.URL)
	}
	if len(c.providers) == 0 {
		return nil, errors.New("at least one messaging provider url is required")
	}
	return c, nil
}

// Send delivers p and returns the provider's delivery id. Transport errors
// fail over to the next provider and are retried up to MaxRetries times.
func (c *Client) Send(ctx context.Context, p *model.MessagePayload) (*model.DeliveryResult, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error = ErrNoAvailableProviders
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		for _, pr := range c.providers {
			if !pr.available(time.Now()) {
				continue
			}
			res, err := c.send(ctx, pr, body)
			if err == nil {
				logger.Info("message delivered to provider",
					"reminder_id", p.Metadata.ReminderID, "provider", pr.name, "delivery_id", res.DeliveryID)
				return res, nil
			}
			if IsRejected(err) {
				return res, err
			}
			logger.Warn("messaging provider failed", "provider", pr.name, "attempt", attempt+1, "error", err)
			lastErr = err
		}
	}
	return nil, fmt.Errorf("send failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) send(ctx context.Context, pr *provider, body []byte) (*model.DeliveryResult, error) {
	raw, err := c.do(ctx, pr, fasthttp.MethodPost, SendPath, body)
	if err != nil {
		c.recordFailure(pr)
		return nil, err
	}

	var res model.DeliveryResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.recordFailure(pr)
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	pr.consecutiveFails.Store(0)
	pr.sent.Add(1)

	if res.Status == StatusFailed || res.DeliveryID == "" {
		reason := res.Error
		if reason == "" {
			reason = "no delivery id returned"
		}
		return &res, &RejectedError{Provider: pr.name, Reason: reason}
	}
	return &res, nil
}

func (c *Client) recordFailure(pr *provider) {
	pr.failed.Add(1)
	if fails := pr.consecutiveFails.Add(1); int(fails) >= c.config.BreakerThreshold {
		pr.openUntil.Store(time.Now().Add(c.config.BreakerCooldown).UnixNano())
		pr.consecutiveFails.Store(0)
		logger.Warn("messaging provider circuit opened", "provider", pr.name, "cooldown", c.config.BreakerCooldown)
	}
}

func (c *Client) do(ctx context.Context, pr *provider, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(pr.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := pr.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request %s: %w", pr.name, err)
	}

	if code := resp.StatusCode(); code != fasthttp.StatusOK && code != fasthttp.StatusAccepted {
		return nil, fmt.Errorf("provider %s answered %d: %s", pr.name, code, resp.Body())
	}
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

// Health asks every provider for its health endpoint.
func (c *Client) Health(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(c.providers))
	for _, pr := range c.providers {
		raw, err := c.do(ctx, pr, fasthttp.MethodGet, HealthPath, nil)
		if err != nil {
			out[pr.name] = false
			continue
		}
		var h struct {
			Status string `json:"status"`
		}
		out[pr.name] = json.Unmarshal(raw, &h) == nil && h.Status == "healthy"
	}
	return out
}

type ProviderStats struct {
	Name        string `json:"name"`
	Sent        int64  `json:"sent"`
	Failed      int64  `json:"failed"`
	CircuitOpen bool   `json:"circuit_open"`
}

func (c *Client) Stats() []ProviderStats {
	now := time.Now()
	out := make([]ProviderStats, len(c.providers))
	for i, pr := range c.providers {
		out[i] = ProviderStats{
			Name:        pr.name,
			Sent:        pr.sent.Load(),
			Failed:      pr.failed.Load(),
			CircuitOpen: !pr.available(now),
		}
	}
	return out
}
